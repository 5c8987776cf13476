package geometry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/observability"
)

// DefaultHall is the name of the hall placement looked up under the world.
const DefaultHall = "hallPV"

// PrintDepth is the depth of the hierarchy dump logged after each load.
const PrintDepth = 2

// Hierarchy owns the currently loaded geometry tree.
// It is not safe for concurrent use; the viewer serializes access.
type Hierarchy struct {
	logger *log.Logger
	root   *Node
	path   string
	nodes  int
	solids int
	vols   int
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(h *Hierarchy) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an empty hierarchy.
func New(opts ...Option) *Hierarchy {
	h := &Hierarchy{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load parses the GDML file at path and replaces the current tree.
// On failure the previously loaded tree stays active.
func (h *Hierarchy) Load(ctx context.Context, path string) error {
	start := time.Now()
	observability.Viewer().OnGeometryLoadStart(ctx, path)

	doc, err := h.load(path)
	nodes := 0
	if doc != nil {
		nodes = doc.nodes
	}
	observability.Viewer().OnGeometryLoadComplete(ctx, path, nodes, time.Since(start), err)
	if err != nil {
		return err
	}

	h.root = doc.world
	h.path = path
	h.nodes = doc.nodes
	h.solids = len(doc.solids)
	h.vols = len(doc.vols)

	h.logger.Info("loaded geometry", "path", path, "world", h.root.Name,
		"volumes", h.vols, "placements", h.nodes)
	if h.logger.GetLevel() <= log.DebugLevel {
		var b strings.Builder
		h.Print(&b, PrintDepth)
		h.logger.Debugf("geometry hierarchy (depth=%d):\n%s", PrintDepth, strings.TrimRight(b.String(), "\n"))
	}
	return nil
}

func (h *Hierarchy) load(path string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeGeometryLoad, err, "geometry file %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeGeometryLoad, err, "open geometry %s", path)
	}
	defer f.Close()

	doc, err := parseGDML(f, h.logger)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGeometryLoad, err, "parse geometry %s", path)
	}
	if doc.world == nil {
		return nil, errors.New(errors.ErrCodeGeometryLoad, "no top node in geometry %s", path)
	}
	return doc, nil
}

// Loaded reports whether a geometry is active.
func (h *Hierarchy) Loaded() bool { return h.root != nil }

// Root returns the world node, or nil before the first successful load.
func (h *Hierarchy) Root() *Node { return h.root }

// Path returns the file the active geometry was loaded from.
func (h *Hierarchy) Path() string { return h.path }

// Stats reports the number of placements, logical volumes and solids.
func (h *Hierarchy) Stats() (placements, volumes, solids int) {
	return h.nodes, h.vols, h.solids
}

// LocateHall returns the root's direct child named name, or the root itself
// when there is no such child.
func (h *Hierarchy) LocateHall(name string) *Node {
	if h.root == nil {
		return nil
	}
	for _, c := range h.root.Children() {
		if c.Name == name {
			return c
		}
	}
	return h.root
}

// DirectChildren returns the ordered placements directly below n.
func (h *Hierarchy) DirectChildren(n *Node) []*Node {
	return n.Children()
}

// Detectors returns the detector subsystems: the direct children of the hall.
func (h *Hierarchy) Detectors(hall string) []*Node {
	return h.DirectChildren(h.LocateHall(hall))
}

// Traverse visits n and its descendants in pre-order down to maxDepth
// (n itself is depth 0). With skipAssemblies, assembly nodes are visited
// but not descended into.
func (h *Hierarchy) Traverse(n *Node, maxDepth int, skipAssemblies bool, visit func(n *Node, depth int)) {
	traverse(n, 0, maxDepth, skipAssemblies, visit)
}

func traverse(n *Node, depth, maxDepth int, skipAssemblies bool, visit func(*Node, int)) {
	if n == nil || depth > maxDepth {
		return
	}
	visit(n, depth)
	if skipAssemblies && n.IsAssembly() {
		return
	}
	for _, c := range n.Children() {
		traverse(c, depth+1, maxDepth, skipAssemblies, visit)
	}
}

// Find returns the first node named name in a pre-order walk of the whole
// tree, or nil.
func (h *Hierarchy) Find(name string) *Node {
	return find(h.root, name, make(map[*Volume]bool))
}

func find(n *Node, name string, seen map[*Volume]bool) *Node {
	if n == nil {
		return nil
	}
	if n.Name == name {
		return n
	}
	// A shared volume has identical subtrees under every placement.
	if seen[n.Volume] {
		return nil
	}
	seen[n.Volume] = true
	for _, c := range n.Children() {
		if f := find(c, name, seen); f != nil {
			return f
		}
	}
	return nil
}

// Print writes the tree down to maxDepth, skipping assembly contents:
//
//	world (vol=world, copy=1, daughters=1)
//	  hallPV (vol=hall, copy=0, daughters=3)
func (h *Hierarchy) Print(w io.Writer, maxDepth int) {
	h.Traverse(h.root, maxDepth, true, func(n *Node, depth int) {
		fmt.Fprintf(w, "%s%s (vol=%s, copy=%d, daughters=%d)\n",
			strings.Repeat("  ", depth), n.Name, n.VolumeName(), n.Copy, len(n.Children()))
	})
}
