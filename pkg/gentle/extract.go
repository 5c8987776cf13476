// Package gentle derives the simplified display geometry from a loaded
// hierarchy and moves it through its two phases: the extract is built and
// persisted to a file, then reloaded from that file into projectable scene
// elements. Only Reload produces input for Import.
package gentle

import (
	"cogentcore.org/core/math32"

	"github.com/matzehuels/evdisplay/pkg/geometry"
)

// RecordName is the name of the record holding the extract.
const RecordName = "Gentle"

// mmToCm converts geometry lengths to display units.
const mmToCm = 0.1

// Shape is one placement of the extract with its global transform and
// attributes baked in. Vertices are global, in centimetres.
type Shape struct {
	Name         string           `json:"name"`
	Volume       string           `json:"volume"`
	Kind         string           `json:"kind,omitempty"`
	Vertices     []math32.Vector3 `json:"vertices,omitempty"`
	Visible      bool             `json:"visible"`
	Daughters    bool             `json:"daughters"`
	Assembly     bool             `json:"assembly,omitempty"`
	Transparency int              `json:"transparency,omitempty"`
	Color        string           `json:"color,omitempty"`
	Children     []*Shape         `json:"children,omitempty"`
}

func (s *Shape) walk(fn func(*Shape)) {
	fn(s)
	for _, c := range s.Children {
		c.walk(fn)
	}
}

// atDepth calls fn for every shape exactly depth levels below s.
func (s *Shape) atDepth(depth int, fn func(*Shape)) {
	if depth == 0 {
		fn(s)
		return
	}
	for _, c := range s.Children {
		c.atDepth(depth-1, fn)
	}
}

// Count returns the number of shapes in the subtree.
func (s *Shape) Count() int {
	n := 0
	s.walk(func(*Shape) { n++ })
	return n
}

// Extract is the display geometry: a re-rooted, depth-bounded copy of the
// hall subtree.
type Extract struct {
	Name     string `json:"name"`
	Hall     string `json:"hall"`
	VisLevel int    `json:"vis_level"`
	Root     *Shape `json:"root"`
}

// Options control extraction.
type Options struct {
	// VisLevel is the number of levels below the hall that are expanded.
	VisLevel int
	// UseDefaults keeps the default attributes and skips Rules.
	UseDefaults bool
	Rules       []Rule
}

// Build creates the extract rooted at hall. The hall itself is made
// invisible with visible daughters; this is also recorded on the hall node.
// The global transform of hall is baked into every vertex.
func Build(h *geometry.Hierarchy, hall *geometry.Node, opts Options) *Extract {
	prepareHall(hall)

	root := expand(hall, globalOf(h, hall), 0, opts.VisLevel)
	for _, c := range root.Children {
		c.Visible = !c.Assembly
	}
	if !opts.UseDefaults {
		applyRules(root, opts.Rules)
	}
	return &Extract{Name: RecordName, Hall: hall.Name, VisLevel: opts.VisLevel, Root: root}
}

func prepareHall(hall *geometry.Node) {
	hall.Attr.Visible = false
	hall.Attr.VisibleDaughters = true
}

// globalOf finds the transform of target relative to the world with a
// breadth-first search from the root. Each volume is expanded once; for a
// node reachable through several placements the shallowest path wins.
func globalOf(h *geometry.Hierarchy, target *geometry.Node) geometry.Transform {
	type entry struct {
		n *geometry.Node
		t geometry.Transform
	}
	root := h.Root()
	if root == nil {
		return target.Local()
	}
	queue := []entry{{root, root.Local()}}
	seen := make(map[*geometry.Volume]bool)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e.n == target {
			return e.t
		}
		if seen[e.n.Volume] {
			continue
		}
		seen[e.n.Volume] = true
		for _, c := range e.n.Children() {
			queue = append(queue, entry{c, e.t.Then(c.Local())})
		}
	}
	return target.Local()
}

func expand(n *geometry.Node, global geometry.Transform, depth, visLevel int) *Shape {
	s := &Shape{
		Name:         n.Name,
		Volume:       n.VolumeName(),
		Visible:      n.Attr.Visible && !n.IsAssembly(),
		Assembly:     n.IsAssembly(),
		Daughters:    n.Attr.VisibleDaughters,
		Transparency: n.Attr.Transparency,
		Color:        n.Attr.Color,
	}
	if sol := n.Volume.Solid; sol != nil && !n.IsAssembly() {
		s.Kind = sol.Kind
		s.Vertices = make([]math32.Vector3, len(sol.Outline))
		for i, p := range sol.Outline {
			s.Vertices[i] = global.Apply(p).MulScalar(mmToCm)
		}
	}
	if depth >= visLevel {
		return s
	}
	for _, c := range n.Children() {
		s.Children = append(s.Children, expand(c, global.Then(c.Local()), depth+1, visLevel))
	}
	return s
}
