package scene

import (
	"sort"

	"cogentcore.org/core/math32"
)

// Axis is a principal 3D axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the axis letter.
func (a Axis) String() string {
	return [...]string{"X", "Y", "Z"}[a]
}

func (a Axis) of(v math32.Vector3) float32 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Projection maps 3D points onto a plane spanned by two axes; the
// remaining axis is dropped.
type Projection struct {
	Name string `json:"name"` // short name, e.g. "zx"
	U    Axis   `json:"u"`    // horizontal plot axis
	V    Axis   `json:"v"`    // vertical plot axis
}

// Title returns the axis pair as shown on the axes, e.g. "Z-X".
func (p Projection) Title() string {
	return p.U.String() + "-" + p.V.String()
}

// The two projections shown next to the 3D view.
var (
	ZX = Projection{Name: "zx", U: AxisZ, V: AxisX}
	ZY = Projection{Name: "zy", U: AxisZ, V: AxisY}
)

// Point projects a 3D point.
func (p Projection) Point(v math32.Vector3) math32.Vector2 {
	return math32.Vec2(p.U.of(v), p.V.of(v))
}

// Item is one projected, flat piece of content.
type Item struct {
	ElementID string           `json:"element_id,omitempty"`
	Name      string           `json:"name"`
	Kind      Kind             `json:"kind"`
	Points    []math32.Vector2 `json:"points"`
	Style     Style            `json:"style"`
	Depth     float32          `json:"depth"`
}

// Manager projects elements for one projection. The depth is stamped on
// items when they are produced; changing it does not touch earlier items.
type Manager struct {
	Projection Projection
	depth      float32
}

// NewManager returns a manager for p with depth zero.
func NewManager(p Projection) *Manager {
	return &Manager{Projection: p}
}

// SetDepth sets the depth given to subsequently projected items.
func (m *Manager) SetDepth(d float32) { m.depth = d }

// Depth returns the current depth.
func (m *Manager) Depth() float32 { return m.depth }

// Project flattens el into items. Invisible elements are skipped but
// their children are still visited unless HideChildren is set. Shapes
// become the convex hull of their projected vertices; lines keep their
// point order.
func (m *Manager) Project(el *Element) []Item {
	var items []Item
	el.Walk(func(e *Element) bool {
		if e.Visible {
			if it, ok := m.item(e); ok {
				items = append(items, it)
			}
		}
		return !e.HideChildren
	})
	return items
}

func (m *Manager) item(e *Element) (Item, bool) {
	it := Item{ElementID: e.ID, Name: e.Name, Kind: e.Kind, Style: e.Style, Depth: m.depth}
	switch e.Kind {
	case KindShape:
		pts := make([]math32.Vector2, len(e.Points))
		for i, p := range e.Points {
			pts[i] = m.Projection.Point(p)
		}
		it.Points = Hull(pts)
		return it, len(it.Points) > 0
	case KindLine:
		it.Points = make([]math32.Vector2, len(e.Points))
		for i, p := range e.Points {
			it.Points[i] = m.Projection.Point(p)
		}
		return it, len(it.Points) > 0
	default:
		return it, false
	}
}

// Hull returns the convex hull of pts in counter-clockwise order using the
// monotone chain algorithm. Collinear points on the hull are dropped.
func Hull(pts []math32.Vector2) []math32.Vector2 {
	if len(pts) < 3 {
		return append([]math32.Vector2(nil), pts...)
	}
	p := append([]math32.Vector2(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})

	cross := func(o, a, b math32.Vector2) float32 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]math32.Vector2, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		pt := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		// All points collinear: keep the two extremes as a segment.
		return []math32.Vector2{p[0], p[len(p)-1]}
	}
	return hull
}
