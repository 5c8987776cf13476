package trajectory

import (
	"context"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/errors"
)

// ROOTSource reads the trk tree of a ROOT file. Integer branches are
// 32-bit, kinetic energy and points are float64.
type ROOTSource struct {
	path string
	file *groot.File
	tree rtree.Tree
}

// OpenROOT opens the ROOT file at path and checks the trk branches.
func OpenROOT(path string) (*ROOTSource, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "open %s", path)
	}
	obj, err := f.Get(Table)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "%s has no %q tree", path, Table)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		f.Close()
		return nil, errors.New(errors.ErrCodeDataSource, "%q in %s is a %s, not a tree", Table, path, obj.Class())
	}
	var missing []string
	for _, name := range Fields {
		if tree.Branch(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		f.Close()
		return nil, errors.New(errors.ErrCodeDataSource, "tree %q in %s lacks branches: %s", Table, path, strings.Join(missing, ", "))
	}
	return &ROOTSource{path: path, file: f, tree: tree}, nil
}

func (s *ROOTSource) Name() string { return s.path }

// ID identifies the file by content.
func (s *ROOTSource) ID() (string, error) {
	sum, err := cache.HashFile(s.path)
	if err != nil {
		return "", err
	}
	return "root:" + sum, nil
}

// Entries returns the number of tree entries.
func (s *ROOTSource) Entries() int64 { return s.tree.Entries() }

func (s *ROOTSource) Scan(ctx context.Context, fn func(*Record) error) error {
	var (
		evt, tid, pid, pdg, npts int32
		kinE                     float64
		x, y, z                  []float64
	)
	rvars := []rtree.ReadVar{
		{Name: FieldEvent, Value: &evt},
		{Name: FieldTrack, Value: &tid},
		{Name: FieldParent, Value: &pid},
		{Name: FieldPDG, Value: &pdg},
		{Name: FieldKinE, Value: &kinE},
		{Name: FieldNPoints, Value: &npts},
		{Name: FieldX, Value: &x},
		{Name: FieldY, Value: &y},
		{Name: FieldZ, Value: &z},
	}
	r, err := rtree.NewReader(s.tree, rvars)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSource, err, "read tree %q", Table)
	}
	defer r.Close()

	rec := Record{}
	return r.Read(func(rtree.RCtx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec = Record{
			EventID:  int64(evt),
			TrackID:  int64(tid),
			ParentID: int64(pid),
			PDG:      pdg,
			KinE:     kinE,
			NPoints:  int(npts),
			X:        x,
			Y:        y,
			Z:        z,
		}
		return fn(&rec)
	})
}

func (s *ROOTSource) Close() error { return s.file.Close() }
