package render

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"

	"cogentcore.org/core/math32"

	"github.com/matzehuels/evdisplay/pkg/scene"
)

const (
	defaultWidth  = 1000
	defaultHeight = 700
	margin        = 48

	defaultShapeColor = "#7f8c8d"
	defaultLineColor  = "#2c3e50"
	axesColor         = "#333333"
)

// SVGOption configures SVG rendering.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	width, height float64
	background    string
	fillOpacity   float64
}

// WithSize sets the canvas size in pixels.
func WithSize(w, h int) SVGOption {
	return func(r *svgRenderer) {
		if w > 0 && h > 0 {
			r.width, r.height = float64(w), float64(h)
		}
	}
}

// WithBackground sets the canvas fill; "" leaves it transparent.
func WithBackground(color string) SVGOption {
	return func(r *svgRenderer) { r.background = color }
}

// WithFillOpacity scales the fill opacity of geometry shapes (0 to 1).
func WithFillOpacity(o float64) SVGOption {
	return func(r *svgRenderer) { r.fillOpacity = math.Max(0, math.Min(1, o)) }
}

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{width: defaultWidth, height: defaultHeight, background: "#ffffff", fillOpacity: 0.4}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RenderView draws a projected view: geometry layer, event layer, axes.
func RenderView(v scene.ViewSnapshot, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	var axes []scene.Item
	var geo []scene.Item
	for _, it := range v.Geometry.Items {
		if it.Kind == scene.KindAxes {
			axes = append(axes, it)
		} else {
			geo = append(geo, it)
		}
	}
	f := fit(r.width, r.height, geo, v.Event.Items)

	var buf bytes.Buffer
	r.open(&buf, v.Projection.Title())
	r.layer(&buf, "geometry", v.Geometry.Name, f, geo)
	r.layer(&buf, "event", v.Event.Name, f, v.Event.Items)
	for _, a := range axes {
		r.axes(&buf, f, v.Projection.U.String(), v.Projection.V.String(), a.Name)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// Oblique camera of the 3D view.
const (
	obliqueScale = 0.5
	obliqueAngle = math32.Pi / 6
)

// oblique maps a 3D point with Z to the right, Y up and X receding.
func oblique(p math32.Vector3) math32.Vector2 {
	return math32.Vec2(
		p.Z+obliqueScale*p.X*math32.Cos(obliqueAngle),
		p.Y+obliqueScale*p.X*math32.Sin(obliqueAngle),
	)
}

// Render3D draws the global and event scenes with an oblique camera.
func Render3D(snap scene.Snapshot, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	geo := flatten(snap.Global.Elements, oblique)
	evt := flatten(snap.Event.Elements, oblique)
	f := fit(r.width, r.height, geo, evt)

	var buf bytes.Buffer
	r.open(&buf, "3D")
	r.layer(&buf, "geometry", snap.Global.Name, f, geo)
	r.layer(&buf, "event", snap.Event.Name, f, evt)
	r.axes(&buf, f, "Z", "Y", "3D")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// flatten walks elements the way scene.Manager does, with an arbitrary
// point mapping.
func flatten(els []*scene.Element, proj func(math32.Vector3) math32.Vector2) []scene.Item {
	var items []scene.Item
	for _, el := range els {
		el.Walk(func(e *scene.Element) bool {
			if !e.Visible || len(e.Points) == 0 {
				return !e.HideChildren
			}
			pts := make([]math32.Vector2, len(e.Points))
			for i, p := range e.Points {
				pts[i] = proj(p)
			}
			switch e.Kind {
			case scene.KindShape:
				pts = scene.Hull(pts)
			case scene.KindLine:
			default:
				return !e.HideChildren
			}
			items = append(items, scene.Item{ElementID: e.ID, Name: e.Name, Kind: e.Kind, Points: pts, Style: e.Style})
			return !e.HideChildren
		})
	}
	return items
}

// frame maps plot coordinates onto the canvas with a uniform scale.
type frame struct {
	min, max math32.Vector2
	scale    float64
	w, h     float64
}

func fit(w, h float64, layers ...[]scene.Item) frame {
	lo := math32.Vec2(math32.Inf(1), math32.Inf(1))
	hi := math32.Vec2(math32.Inf(-1), math32.Inf(-1))
	for _, items := range layers {
		for _, it := range items {
			for _, p := range it.Points {
				lo = math32.Vec2(math32.Min(lo.X, p.X), math32.Min(lo.Y, p.Y))
				hi = math32.Vec2(math32.Max(hi.X, p.X), math32.Max(hi.Y, p.Y))
			}
		}
	}
	if lo.X > hi.X {
		lo, hi = math32.Vec2(-1, -1), math32.Vec2(1, 1)
	}
	du := math.Max(float64(hi.X-lo.X), 1e-3)
	dv := math.Max(float64(hi.Y-lo.Y), 1e-3)
	scale := math.Min((w-2*margin)/du, (h-2*margin)/dv)
	return frame{min: lo, max: hi, scale: scale, w: w, h: h}
}

// xy converts a plot point to canvas coordinates, v pointing up.
func (f frame) xy(p math32.Vector2) (float64, float64) {
	return margin + float64(p.X-f.min.X)*f.scale, f.h - margin - float64(p.Y-f.min.Y)*f.scale
}

func (f frame) points(pts []math32.Vector2) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		x, y := f.xy(p)
		parts[i] = fmt.Sprintf("%.2f,%.2f", x, y)
	}
	return strings.Join(parts, " ")
}

func (r *svgRenderer) open(buf *bytes.Buffer, title string) {
	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" width="%.0f" height="%.0f">`+"\n",
		r.width, r.height, r.width, r.height)
	fmt.Fprintf(buf, "  <title>%s</title>\n", html.EscapeString(title))
	if r.background != "" {
		fmt.Fprintf(buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", r.background)
	}
}

func (r *svgRenderer) layer(buf *bytes.Buffer, class, name string, f frame, items []scene.Item) {
	sorted := append([]scene.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Depth < sorted[j].Depth })

	fmt.Fprintf(buf, `  <g class="%s" data-name="%s">`+"\n", class, html.EscapeString(name))
	for _, it := range sorted {
		r.item(buf, f, it)
	}
	buf.WriteString("  </g>\n")
}

func (r *svgRenderer) item(buf *bytes.Buffer, f frame, it scene.Item) {
	title := html.EscapeString(it.Name)
	switch it.Kind {
	case scene.KindShape:
		color := it.Style.Color
		if color == "" {
			color = defaultShapeColor
		}
		opacity := r.fillOpacity * float64(100-clamp(it.Style.Transparency, 0, 100)) / 100
		if len(it.Points) < 3 {
			fmt.Fprintf(buf, `    <polyline class="shape" points="%s" fill="none" stroke="%s" stroke-width="1"><title>%s</title></polyline>`+"\n",
				f.points(it.Points), color, title)
			return
		}
		fmt.Fprintf(buf, `    <polygon class="shape" points="%s" fill="%s" fill-opacity="%.2f" stroke="%s" stroke-width="1"><title>%s</title></polygon>`+"\n",
			f.points(it.Points), color, opacity, color, title)
	case scene.KindLine:
		color := it.Style.Color
		if color == "" {
			color = defaultLineColor
		}
		width := it.Style.Width
		if width <= 0 {
			width = 1
		}
		if len(it.Points) == 1 {
			x, y := f.xy(it.Points[0])
			fmt.Fprintf(buf, `    <circle class="line" cx="%.2f" cy="%.2f" r="%.1f" fill="%s"><title>%s</title></circle>`+"\n",
				x, y, width+1, color, title)
			return
		}
		dash := ""
		if it.Style.Dashed {
			dash = ` stroke-dasharray="6 4"`
		}
		fmt.Fprintf(buf, `    <polyline class="line" points="%s" fill="none" stroke="%s" stroke-width="%.1f"%s><title>%s</title></polyline>`+"\n",
			f.points(it.Points), color, width, dash, title)
	}
}

// axes draws the two plot axes from the lower-left corner of the content,
// labelled with the axis letters and the content range in cm.
func (r *svgRenderer) axes(buf *bytes.Buffer, f frame, u, v, title string) {
	x0, y0 := f.xy(f.min)
	x1, _ := f.xy(math32.Vec2(f.max.X, f.min.Y))
	_, y1 := f.xy(math32.Vec2(f.min.X, f.max.Y))

	fmt.Fprintf(buf, `  <g class="axes" data-name="%s" stroke="%s" fill="%s" font-family="sans-serif" font-size="12">`+"\n",
		html.EscapeString(title), axesColor, axesColor)
	fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x0, y0, x1, y0)
	fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x0, y0, x0, y1)
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none">%s</text>`+"\n", x1+6, y0+4, u)
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none">%s</text>`+"\n", x0-4, y1-8, v)
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none" text-anchor="middle">%.4g</text>`+"\n", x0, y0+16, f.min.X)
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none" text-anchor="middle">%.4g</text>`+"\n", x1, y0+16, f.max.X)
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none" text-anchor="end">%.4g</text>`+"\n", x0-6, y1+4, f.max.Y)
	fmt.Fprintf(buf, `    <text x="%d" y="%d" stroke="none" font-size="16">%s</text>`+"\n", margin, margin/2, html.EscapeString(title))
	buf.WriteString("  </g>\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
