package gentle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/evdisplay/pkg/buildinfo"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/scene"
)

// fileFormat is the on-disk layout of an extract file: a set of named
// records, one of which must be RecordName.
type fileFormat struct {
	Generator string              `json:"generator"`
	Created   time.Time           `json:"created"`
	Records   map[string]*Extract `json:"records"`
}

// Marshal encodes ex in the extract file format.
func Marshal(ex *Extract) ([]byte, error) {
	return json.Marshal(fileFormat{
		Generator: "evdisplay " + buildinfo.Version,
		Created:   time.Now().UTC(),
		Records:   map[string]*Extract{ex.Name: ex},
	})
}

// Persist writes ex to path, replacing any previous file atomically.
func Persist(ex *Extract, path string) error {
	data, err := Marshal(ex)
	if err != nil {
		return errors.Wrap(errors.ErrCodeGeometryExtract, err, "encode extract")
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeGeometryExtract, err, "create extract directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeGeometryExtract, err, "write extract %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeGeometryExtract, err, "write extract %s", path)
	}
	return nil
}

// Reload reads the extract record from path. It fails with
// GEOMETRY_EXTRACT when the file is missing, corrupt, or lacks the record.
func Reload(path string) (*Extract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryExtract, err, "failed to import gentle geometry %s", path)
	}
	return unmarshal(data, path)
}

func unmarshal(data []byte, path string) (*Extract, error) {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryExtract, err, "corrupt extract %s", path)
	}
	ex, ok := f.Records[RecordName]
	if !ok || ex == nil || ex.Root == nil {
		return nil, errors.New(errors.ErrCodeGeometryExtract, "extract %s has no %q record", path, RecordName)
	}
	return ex, nil
}

// Import converts a reloaded extract into scene elements. The returned
// group is named after the record and mirrors the shape tree.
func Import(ex *Extract) *scene.Element {
	root := scene.NewGroup(ex.Name)
	root.Add(importShape(ex.Root))
	return root
}

func importShape(s *Shape) *scene.Element {
	var el *scene.Element
	if len(s.Vertices) > 0 {
		el = scene.NewShape(s.Name, s.Vertices, scene.Style{
			Color:        s.Color,
			Transparency: s.Transparency,
		})
	} else {
		el = scene.NewGroup(s.Name)
	}
	el.Visible = s.Visible
	el.HideChildren = !s.Daughters
	for _, c := range s.Children {
		el.Add(importShape(c))
	}
	return el
}
