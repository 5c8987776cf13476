package render

import (
	"encoding/json"

	"github.com/matzehuels/evdisplay/pkg/scene"
)

// sceneJSON is the dump format of the 3D view.
type sceneJSON struct {
	Version uint64        `json:"version"`
	Scenes  []scene.Scene `json:"scenes"`
	Views   []viewJSON    `json:"views,omitempty"`
}

type viewJSON struct {
	Name     string       `json:"name"`
	Title    string       `json:"title"`
	Depth    float32      `json:"depth"`
	Geometry []scene.Item `json:"geometry"`
	Event    []scene.Item `json:"event"`
}

// JSONOption configures JSON dumps.
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	views  bool
	indent bool
}

// WithViews includes the projected layers in the dump.
func WithViews() JSONOption { return func(r *jsonRenderer) { r.views = true } }

// WithIndent pretty-prints the dump.
func WithIndent() JSONOption { return func(r *jsonRenderer) { r.indent = true } }

// RenderJSON dumps the global and event scenes.
func RenderJSON(snap scene.Snapshot, opts ...JSONOption) ([]byte, error) {
	var r jsonRenderer
	for _, opt := range opts {
		opt(&r)
	}
	out := sceneJSON{Version: snap.Version, Scenes: []scene.Scene{snap.Global, snap.Event}}
	if r.views {
		for _, v := range snap.Views {
			out.Views = append(out.Views, viewJSON{
				Name:     v.Projection.Name,
				Title:    v.Projection.Title(),
				Depth:    v.Depth,
				Geometry: v.Geometry.Items,
				Event:    v.Event.Items,
			})
		}
	}
	if r.indent {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}
