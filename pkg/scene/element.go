// Package scene holds the renderable content of the three views: the
// unprojected 3D view and the Z-X and Z-Y projections.
//
// Elements are 3D and unit-agnostic (the viewer feeds centimetres). A View
// projects elements into flat Items once, at import time, using the depth
// configured at that moment. Set groups the scenes and swaps event content
// atomically with respect to readers.
package scene

import (
	"github.com/google/uuid"

	"cogentcore.org/core/math32"
)

// Kind distinguishes element types.
type Kind int

const (
	// KindGroup is a pure container.
	KindGroup Kind = iota
	// KindShape is a solid given by a vertex cloud.
	KindShape
	// KindLine is a polyline, e.g. a particle track.
	KindLine
	// KindAxes is a projection's axis frame.
	KindAxes
)

// String returns the kind name used in dumps and SVG class names.
func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindShape:
		return "shape"
	case KindLine:
		return "line"
	case KindAxes:
		return "axes"
	default:
		return "unknown"
	}
}

// Style is the visual appearance of an element.
type Style struct {
	Color        string  `json:"color,omitempty"`
	Width        float32 `json:"width,omitempty"`
	Dashed       bool    `json:"dashed,omitempty"`
	Transparency int     `json:"transparency,omitempty"` // 0 (opaque) to 100
}

// Element is a node of 3D renderable content.
type Element struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     Kind             `json:"kind"`
	Points   []math32.Vector3 `json:"points,omitempty"`
	Style    Style            `json:"style"`
	Visible  bool             `json:"visible"`
	Children []*Element       `json:"children,omitempty"`

	// HideChildren stops rendering below this element.
	HideChildren bool `json:"hide_children,omitempty"`
}

func newElement(name string, kind Kind) *Element {
	return &Element{ID: uuid.NewString(), Name: name, Kind: kind, Visible: true}
}

// NewGroup creates a container element.
func NewGroup(name string, children ...*Element) *Element {
	e := newElement(name, KindGroup)
	e.Children = children
	return e
}

// NewShape creates a solid element from its vertex cloud.
func NewShape(name string, vertices []math32.Vector3, style Style) *Element {
	e := newElement(name, KindShape)
	e.Points = vertices
	e.Style = style
	return e
}

// NewLine creates a polyline element.
func NewLine(name string, points []math32.Vector3, style Style) *Element {
	e := newElement(name, KindLine)
	e.Points = points
	e.Style = style
	return e
}

// Add appends children to e.
func (e *Element) Add(children ...*Element) {
	e.Children = append(e.Children, children...)
}

// Walk calls fn for e and every descendant in pre-order. Returning false
// from fn skips the element's children.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Count returns the number of elements of kind k in the subtree.
func (e *Element) Count(k Kind) int {
	n := 0
	e.Walk(func(el *Element) bool {
		if el.Kind == k {
			n++
		}
		return true
	})
	return n
}

// Bounds returns the bounding box of all points in the subtree.
func (e *Element) Bounds() math32.Box3 {
	b := math32.B3Empty()
	e.Walk(func(el *Element) bool {
		for _, p := range el.Points {
			b.ExpandByPoint(p)
		}
		return true
	})
	return b
}
