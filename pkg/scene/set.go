package scene

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/evdisplay/pkg/observability"
)

// Scene names, as shown in the viewer.
const (
	GlobalSceneName = "Geometry"
	EventSceneName  = "Event Data"
)

// Scene is a named container of 3D elements.
type Scene struct {
	Name     string     `json:"name"`
	Elements []*Element `json:"elements"`
}

// Layer is a named container of projected items.
type Layer struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// View is one projection with its geometry and event layers.
type View struct {
	*Manager
	Geometry *Layer
	Event    *Layer
}

func newView(p Projection) *View {
	title := p.U.String() + p.V.String()
	return &View{
		Manager:  NewManager(p),
		Geometry: &Layer{Name: title + " Geometry"},
		Event:    &Layer{Name: title + " Event Data"},
	}
}

// axes returns the axis frame item of the view.
func (v *View) axes() Item {
	return Item{Name: v.Projection.Title(), Kind: KindAxes, Depth: v.depth}
}

// Set owns the global and event 3D scenes plus the projected views.
// All methods are safe for concurrent use; writers take the lock for the
// swap only, projection happens before.
type Set struct {
	mu      sync.RWMutex
	global  *Scene
	event   *Scene
	views   []*View
	version uint64
}

// NewSet creates the scene set with the Z-X and Z-Y projections.
func NewSet() *Set {
	s := &Set{
		global: &Scene{Name: GlobalSceneName},
		event:  &Scene{Name: EventSceneName},
		views:  []*View{newView(ZX), newView(ZY)},
	}
	for _, v := range s.views {
		v.Geometry.Items = []Item{v.axes()}
	}
	return s
}

// ImportGeometry adds el to the global scene and projects it into the
// geometry layer of every view. It is called once per geometry load.
func (s *Set) ImportGeometry(ctx context.Context, el *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.global.Elements = append(s.global.Elements, el)
	for _, v := range s.views {
		start := time.Now()
		items := v.Project(el)
		v.Geometry.Items = append(v.Geometry.Items, items...)
		observability.Viewer().OnProjection(ctx, v.Projection.Name, len(items), time.Since(start))
	}
	s.version++
}

// ResetGeometry clears the global scene and every geometry layer, keeping
// the axes. It is used before importing a reloaded geometry.
func (s *Set) ResetGeometry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.global.Elements = nil
	for _, v := range s.views {
		v.Geometry.Items = []Item{v.axes()}
	}
	s.version++
}

// ReplaceEventData destroys all event content and imports els instead.
// The new layers are built first and swapped in under a single write lock,
// so no reader observes a mix of old and new content.
func (s *Set) ReplaceEventData(ctx context.Context, els []*Element) {
	s.mu.RLock()
	views := s.views
	depths := make([]float32, len(views))
	for i, v := range views {
		depths[i] = v.depth
	}
	s.mu.RUnlock()

	// Project off-line with the depth captured above.
	layers := make([][]Item, len(views))
	for i, v := range views {
		start := time.Now()
		m := Manager{Projection: v.Projection, depth: depths[i]}
		var items []Item
		for _, el := range els {
			items = append(items, m.Project(el)...)
		}
		layers[i] = items
		observability.Viewer().OnProjection(ctx, v.Projection.Name, len(items), time.Since(start))
	}
	elements := append([]*Element(nil), els...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Elements = elements
	for i, v := range views {
		v.Event.Items = layers[i]
	}
	s.version++
}

// SetDepth sets the projection depth of every view. Already imported
// items keep the depth they were projected with.
func (s *Set) SetDepth(d float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.views {
		v.SetDepth(d)
	}
}

// Depth returns the depth of the first view; all views share it.
func (s *Set) Depth() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views[0].depth
}

// Version increases with every content change.
func (s *Set) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// =============================================================================
// Snapshots
// =============================================================================

// ViewSnapshot is a read-only copy of one projected view.
type ViewSnapshot struct {
	Projection Projection `json:"projection"`
	Depth      float32    `json:"depth"`
	Geometry   Layer      `json:"geometry"`
	Event      Layer      `json:"event"`
}

// Snapshot is a consistent read-only copy of the whole set.
type Snapshot struct {
	Version uint64
	Global  Scene
	Event   Scene
	Views   []ViewSnapshot
}

// Snapshot copies the current content. Slices are copied; elements and
// items are never mutated after import, so they are shared.
func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version: s.version,
		Global:  Scene{Name: s.global.Name, Elements: append([]*Element(nil), s.global.Elements...)},
		Event:   Scene{Name: s.event.Name, Elements: append([]*Element(nil), s.event.Elements...)},
	}
	for _, v := range s.views {
		snap.Views = append(snap.Views, ViewSnapshot{
			Projection: v.Projection,
			Depth:      v.depth,
			Geometry:   Layer{Name: v.Geometry.Name, Items: append([]Item(nil), v.Geometry.Items...)},
			Event:      Layer{Name: v.Event.Name, Items: append([]Item(nil), v.Event.Items...)},
		})
	}
	return snap
}

// View returns the snapshot of the named projection ("zx" or "zy").
func (s Snapshot) View(name string) (ViewSnapshot, bool) {
	for _, v := range s.Views {
		if v.Projection.Name == name {
			return v, true
		}
	}
	return ViewSnapshot{}, false
}
