package geometry

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
)

// element is a generic GDML element. GDML sections mix many element kinds,
// so the document is decoded as a tree and interpreted afterwards.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func (e *element) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (e *element) child(name string) *element {
	for i := range e.Children {
		if e.Children[i].XMLName.Local == name {
			return &e.Children[i]
		}
	}
	return nil
}

// document is the parsed content of one GDML file.
type document struct {
	world  *Node
	nodes  int
	solids map[string]*Solid
	vols   map[string]*Volume
}

// parser interprets a decoded GDML tree.
type parser struct {
	logger  *log.Logger
	ev      *evaluator
	solids  map[string]*Solid
	volDefs map[string]*element
	vols    map[string]*Volume
	active  map[string]bool
	nodes   int
}

func parseGDML(r io.Reader, logger *log.Logger) (*document, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	if root.XMLName.Local != "gdml" {
		return nil, fmt.Errorf("root element is <%s>, want <gdml>", root.XMLName.Local)
	}

	p := &parser{
		logger:  logger,
		ev:      newEvaluator(),
		solids:  make(map[string]*Solid),
		volDefs: make(map[string]*element),
		vols:    make(map[string]*Volume),
		active:  make(map[string]bool),
	}

	var setup *element
	for i := range root.Children {
		sec := &root.Children[i]
		switch sec.XMLName.Local {
		case "define":
			if err := p.defines(sec); err != nil {
				return nil, err
			}
		case "solids":
			if err := p.solidSection(sec); err != nil {
				return nil, err
			}
		case "structure":
			for j := range sec.Children {
				el := &sec.Children[j]
				switch el.XMLName.Local {
				case "volume", "assembly":
					p.volDefs[el.attr("name")] = el
				}
			}
		case "setup":
			if setup == nil {
				setup = sec
			}
		}
	}

	if setup == nil {
		return nil, fmt.Errorf("no <setup> section")
	}
	w := setup.child("world")
	if w == nil || w.attr("ref") == "" {
		return nil, fmt.Errorf("setup %q has no world volume", setup.attr("name"))
	}
	vol, err := p.volume(w.attr("ref"))
	if err != nil {
		return nil, err
	}
	world := &Node{Name: vol.Name, Copy: 1, Volume: vol, Attr: DefaultAttr()}
	p.nodes++

	return &document{world: world, nodes: p.nodes, solids: p.solids, vols: p.vols}, nil
}

// =============================================================================
// Defines
// =============================================================================

func (p *parser) defines(sec *element) error {
	for i := range sec.Children {
		el := &sec.Children[i]
		name := el.attr("name")
		switch el.XMLName.Local {
		case "constant", "variable":
			v, err := p.ev.eval(el.attr("value"))
			if err != nil {
				return fmt.Errorf("%s %q: %w", el.XMLName.Local, name, err)
			}
			p.ev.define(name, v)
		case "quantity":
			v, err := p.ev.eval(el.attr("value"))
			if err != nil {
				return fmt.Errorf("quantity %q: %w", name, err)
			}
			u := 1.0
			if un := el.attr("unit"); un != "" {
				if u, err = unit(un, ""); err != nil {
					return fmt.Errorf("quantity %q: %w", name, err)
				}
			}
			p.ev.define(name, v*u)
		case "position":
			v, err := p.triple(el, "mm")
			if err != nil {
				return fmt.Errorf("position %q: %w", name, err)
			}
			p.ev.positions[name] = v
		case "rotation":
			v, err := p.triple(el, "rad")
			if err != nil {
				return fmt.Errorf("rotation %q: %w", name, err)
			}
			p.ev.rotations[name] = v
		default:
			p.logger.Debug("ignoring define", "element", el.XMLName.Local, "name", name)
		}
	}
	return nil
}

// triple evaluates the x/y/z attributes of a position or rotation element.
func (p *parser) triple(el *element, defUnit string) ([3]float64, error) {
	var out [3]float64
	u, err := unit(el.attr("unit"), defUnit)
	if err != nil {
		return out, err
	}
	for i, k := range []string{"x", "y", "z"} {
		v, err := p.ev.eval(el.attr(k))
		if err != nil {
			return out, err
		}
		out[i] = v * u
	}
	return out, nil
}

// =============================================================================
// Solids
// =============================================================================

func (p *parser) solidSection(sec *element) error {
	for i := range sec.Children {
		el := &sec.Children[i]
		s, err := p.solid(el)
		if err != nil {
			return fmt.Errorf("solid %q: %w", el.attr("name"), err)
		}
		p.solids[s.Name] = s
	}
	return nil
}

// params evaluates length and angle attributes scaled by lunit and aunit.
func (p *parser) params(el *element, lengths, angles []string) (map[string]float64, error) {
	lu, err := unit(el.attr("lunit"), "mm")
	if err != nil {
		return nil, err
	}
	au, err := unit(el.attr("aunit"), "rad")
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(lengths)+len(angles))
	for _, k := range lengths {
		v, err := p.ev.eval(el.attr(k))
		if err != nil {
			return nil, err
		}
		out[k] = v * lu
	}
	for _, k := range angles {
		v, err := p.ev.eval(el.attr(k))
		if err != nil {
			return nil, err
		}
		out[k] = v * au
	}
	return out, nil
}

func (p *parser) solid(el *element) (*Solid, error) {
	s := &Solid{Name: el.attr("name"), Kind: el.XMLName.Local}
	var err error

	switch s.Kind {
	case KindBox:
		if s.Params, err = p.params(el, []string{"x", "y", "z"}, nil); err != nil {
			return nil, err
		}
		s.Outline = boxOutline(s.Params["x"]/2, s.Params["y"]/2, s.Params["z"]/2)

	case KindTube:
		if s.Params, err = p.params(el, []string{"rmin", "rmax", "z"}, []string{"startphi", "deltaphi"}); err != nil {
			return nil, err
		}
		pr := s.Params
		s.Outline = coneOutline(pr["rmax"], pr["rmax"], pr["z"]/2, pr["startphi"], pr["deltaphi"])

	case KindCone:
		if s.Params, err = p.params(el, []string{"rmin1", "rmax1", "rmin2", "rmax2", "z"}, []string{"startphi", "deltaphi"}); err != nil {
			return nil, err
		}
		pr := s.Params
		s.Outline = coneOutline(pr["rmax1"], pr["rmax2"], pr["z"]/2, pr["startphi"], pr["deltaphi"])

	case KindSphere:
		if s.Params, err = p.params(el, []string{"rmin", "rmax"}, []string{"startphi", "deltaphi", "starttheta", "deltatheta"}); err != nil {
			return nil, err
		}
		pr := s.Params
		s.Outline = sphereOutline(pr["rmax"], pr["startphi"], pr["deltaphi"], pr["starttheta"], pr["deltatheta"])

	case KindTrd:
		if s.Params, err = p.params(el, []string{"x1", "x2", "y1", "y2", "z"}, nil); err != nil {
			return nil, err
		}
		pr := s.Params
		s.Outline = trdOutline(pr["x1"]/2, pr["x2"]/2, pr["y1"]/2, pr["y2"]/2, pr["z"]/2)

	case KindEltube:
		if s.Params, err = p.params(el, []string{"dx", "dy", "dz"}, nil); err != nil {
			return nil, err
		}
		s.Outline = ellipseOutline(s.Params["dx"], s.Params["dy"], s.Params["dz"])

	case KindTorus:
		if s.Params, err = p.params(el, []string{"rmin", "rmax", "rtor"}, []string{"startphi", "deltaphi"}); err != nil {
			return nil, err
		}
		pr := s.Params
		s.Outline = torusOutline(pr["rmax"], pr["rtor"], pr["startphi"], pr["deltaphi"])

	case KindPolycone:
		if s.Params, err = p.params(el, nil, []string{"startphi", "deltaphi"}); err != nil {
			return nil, err
		}
		lu, err := unit(el.attr("lunit"), "mm")
		if err != nil {
			return nil, err
		}
		planes := 0
		for i := range el.Children {
			zp := &el.Children[i]
			if zp.XMLName.Local != "zplane" {
				continue
			}
			z, err := p.ev.eval(zp.attr("z"))
			if err != nil {
				return nil, err
			}
			rmax, err := p.ev.eval(zp.attr("rmax"))
			if err != nil {
				return nil, err
			}
			s.Outline = append(s.Outline, arc(rmax*lu, z*lu, s.Params["startphi"], s.Params["deltaphi"])...)
			planes++
		}
		s.Params["zplanes"] = float64(planes)

	case KindUnion, KindSubtraction, KindIntersection:
		first := el.child("first")
		if first == nil {
			return nil, fmt.Errorf("boolean solid without <first>")
		}
		base, ok := p.solids[first.attr("ref")]
		if !ok {
			return nil, fmt.Errorf("unknown first solid %q", first.attr("ref"))
		}
		s.Outline = base.Outline
		s.Params = map[string]float64{}

	default:
		p.logger.Warn("unsupported solid, drawing nothing", "solid", s.Name, "kind", s.Kind)
		s.Params = map[string]float64{}
	}
	return s, nil
}

// =============================================================================
// Structure
// =============================================================================

// volume resolves a logical volume by name, building it on first use.
func (p *parser) volume(name string) (*Volume, error) {
	if v, ok := p.vols[name]; ok {
		return v, nil
	}
	el, ok := p.volDefs[name]
	if !ok {
		return nil, fmt.Errorf("unknown volume %q", name)
	}
	if p.active[name] {
		return nil, fmt.Errorf("volume %q contains itself", name)
	}
	p.active[name] = true
	defer delete(p.active, name)

	v := &Volume{Name: name, Assembly: el.XMLName.Local == "assembly"}
	if !v.Assembly {
		if ref := el.child("solidref"); ref != nil {
			s, ok := p.solids[ref.attr("ref")]
			if !ok {
				return nil, fmt.Errorf("volume %q: unknown solid %q", name, ref.attr("ref"))
			}
			v.Solid = s
		} else {
			return nil, fmt.Errorf("volume %q has no solidref", name)
		}
		if ref := el.child("materialref"); ref != nil {
			v.Material = ref.attr("ref")
		}
	}

	for i := range el.Children {
		c := &el.Children[i]
		switch c.XMLName.Local {
		case "physvol":
			n, err := p.physvol(c)
			if err != nil {
				return nil, fmt.Errorf("volume %q: %w", name, err)
			}
			if n != nil {
				v.Daughters = append(v.Daughters, n)
			}
		case "auxiliary":
			if v.Aux == nil {
				v.Aux = make(map[string]string)
			}
			v.Aux[c.attr("auxtype")] = c.attr("auxvalue")
		}
	}

	p.vols[name] = v
	return v, nil
}

func (p *parser) physvol(el *element) (*Node, error) {
	if el.child("file") != nil {
		p.logger.Warn("external physvol files are not supported, skipping", "physvol", el.attr("name"))
		return nil, nil
	}
	ref := el.child("volumeref")
	if ref == nil {
		return nil, fmt.Errorf("physvol %q has no volumeref", el.attr("name"))
	}
	vol, err := p.volume(ref.attr("ref"))
	if err != nil {
		return nil, err
	}

	n := &Node{Volume: vol, Attr: DefaultAttr()}
	if c := el.attr("copynumber"); c != "" {
		if n.Copy, err = strconv.Atoi(c); err != nil {
			return nil, fmt.Errorf("physvol %q: bad copynumber %q", el.attr("name"), c)
		}
	}
	n.Name = el.attr("name")
	if n.Name == "" {
		n.Name = fmt.Sprintf("%s_%d", vol.Name, n.Copy)
	}

	pos, err := p.placement(el, "position", "positionref", "mm", p.ev.positions)
	if err != nil {
		return nil, err
	}
	rot, err := p.placement(el, "rotation", "rotationref", "rad", p.ev.rotations)
	if err != nil {
		return nil, err
	}
	n.Position = vec(pos[0], pos[1], pos[2])
	n.Rotation = vec(rot[0], rot[1], rot[2])

	if c, ok := vol.Aux["Color"]; ok {
		n.Attr.Color = c
	}
	p.nodes++
	return n, nil
}

// placement reads an inline or referenced position/rotation of a physvol.
func (p *parser) placement(el *element, inline, refName, defUnit string, named map[string][3]float64) ([3]float64, error) {
	if c := el.child(inline); c != nil {
		return p.triple(c, defUnit)
	}
	if c := el.child(refName); c != nil {
		v, ok := named[c.attr("ref")]
		if !ok {
			return v, fmt.Errorf("unknown %s %q", inline, c.attr("ref"))
		}
		return v, nil
	}
	return [3]float64{}, nil
}
