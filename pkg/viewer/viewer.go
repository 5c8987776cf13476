// Package viewer wires the display core together: it loads the geometry,
// derives and imports the display extract, opens the event source, and
// keeps the event scenes in step with navigation.
//
// An Orchestrator owns the geometry hierarchy, the trajectory store and the
// scene set. All of its methods are serialized by one mutex; renderers read
// consistent copies through Snapshot. Control surfaces either call the
// methods directly or dispatch actions through a Dispatcher bound with
// Bind. Listeners registered with Subscribe are told after every change,
// which is the cue to redraw.
package viewer

import (
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"sync"

	"cogentcore.org/core/math32"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/config"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/gentle"
	"github.com/matzehuels/evdisplay/pkg/geometry"
	"github.com/matzehuels/evdisplay/pkg/scene"
	"github.com/matzehuels/evdisplay/pkg/state"
	"github.com/matzehuels/evdisplay/pkg/trajectory"
)

// TracksName is the name of the event container rebuilt on each step.
const TracksName = "Tracks"

// UpdateKind tells listeners what changed.
type UpdateKind int

const (
	UpdateGeometry UpdateKind = iota
	UpdateEvent
)

func (k UpdateKind) String() string {
	if k == UpdateGeometry {
		return "geometry"
	}
	return "event"
}

// Update is passed to listeners after a change.
type Update struct {
	Kind    UpdateKind         `json:"-"`
	Type    string             `json:"type"`
	Version uint64             `json:"version"`
	Summary trajectory.Summary `json:"summary"`
}

// Listener receives updates. It runs on the goroutine that made the change,
// after the orchestrator lock is released.
type Listener func(Update)

// PositionStore persists the last viewed event per data source.
type PositionStore interface {
	Get(ctx context.Context, source string) (*state.Position, error)
	Set(ctx context.Context, pos *state.Position) error
}

// Options configures an Orchestrator.
type Options struct {
	Config    *config.Config
	Logger    *log.Logger
	Cache     cache.Cache
	Keyer     cache.Keyer
	Positions PositionStore // nil disables resume
}

// Orchestrator owns the viewer state.
type Orchestrator struct {
	mu        sync.Mutex
	cfg       config.Config
	logger    *log.Logger
	cache     cache.Cache
	keyer     cache.Keyer
	positions PositionStore

	hier   *geometry.Hierarchy
	store  *trajectory.Store
	scenes *scene.Set
	runner *gentle.Runner

	geometryPath string
	dataURI      string
	extract      *gentle.Result

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New creates an orchestrator with empty scenes.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	o := &Orchestrator{
		cfg:       *cfg,
		logger:    logger,
		cache:     opts.Cache,
		keyer:     opts.Keyer,
		positions: opts.Positions,
		hier:      geometry.New(geometry.WithLogger(logger)),
		scenes:    scene.NewSet(),
		runner:    gentle.NewRunner(opts.Cache, opts.Keyer, logger),
		listeners: make(map[int]Listener),
	}
	o.store = o.newStore()
	o.scenes.SetDepth(float32(cfg.Projection.Depth))
	return o
}

func (o *Orchestrator) newStore() *trajectory.Store {
	return trajectory.NewStore(
		trajectory.WithLogger(o.logger),
		trajectory.WithCache(o.cache, o.keyer),
	)
}

// Start loads the geometry and, when dataURI is set, opens the event
// source. Both run concurrently and are applied only when both succeed;
// on failure the previous state stays active.
func (o *Orchestrator) Start(ctx context.Context, geometryPath, dataURI string) error {
	if geometryPath == "" {
		return errors.New(errors.ErrCodeInvalidInput, "geometry file is required")
	}

	h := geometry.New(geometry.WithLogger(o.logger))
	var st *trajectory.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Load(gctx, geometryPath) })
	if dataURI != "" {
		st = o.newStore()
		g.Go(func() error { return st.OpenURI(gctx, dataURI) })
	}
	if err := g.Wait(); err != nil {
		if st != nil {
			st.Close()
		}
		return err
	}

	o.mu.Lock()
	if err := o.applyGeometry(ctx, h, geometryPath, false); err != nil {
		o.mu.Unlock()
		if st != nil {
			st.Close()
		}
		return err
	}
	if st == nil {
		st = o.newStore()
	}
	if err := o.store.Close(); err != nil {
		o.logger.Warn("closing previous data source", "error", err)
	}
	o.store, o.dataURI = st, dataURI
	o.resume(ctx)
	err := o.loadEvent(ctx)
	ups := []Update{o.update(UpdateGeometry), o.update(UpdateEvent)}
	o.mu.Unlock()

	o.notify(ups...)
	return err
}

// applyGeometry generates the display extract of h and imports it into
// the geometry scenes, replacing the previous geometry. Caller holds mu.
func (o *Orchestrator) applyGeometry(ctx context.Context, h *geometry.Hierarchy, path string, refresh bool) error {
	res, err := o.runner.Generate(ctx, h, gentle.Request{
		Hall:    o.cfg.Geometry.Hall,
		Path:    o.cfg.ExtractPath(path),
		Options: o.extractOptions(o.cfg.Geometry.VisLevel),
		Refresh: refresh,
	})
	if err != nil {
		return err
	}
	o.scenes.ResetGeometry()
	o.scenes.ImportGeometry(ctx, res.Element)
	o.hier, o.geometryPath, o.extract = h, path, res
	o.logger.Info("geometry imported", "shapes", res.Shapes, "cached", res.CacheHit, "elapsed", res.Duration)
	return nil
}

func (o *Orchestrator) extractOptions(visLevel int) gentle.Options {
	return gentle.Options{
		VisLevel:    visLevel,
		UseDefaults: o.cfg.Geometry.UseDefaults,
		Rules:       gentle.RulesFromConfig(o.cfg.Geometry.Rules),
	}
}

// resume selects the last viewed event of the current source. Caller
// holds mu.
func (o *Orchestrator) resume(ctx context.Context) {
	if o.positions == nil || !o.cfg.State.Resume || o.dataURI == "" {
		return
	}
	pos, err := o.positions.Get(ctx, o.dataURI)
	if err != nil {
		o.logger.Warn("reading last position", "error", err)
		return
	}
	if pos == nil {
		return
	}
	if err := o.store.Select(pos.EventID); err == nil {
		o.logger.Info("resuming", "event", pos.EventID)
	}
}

// loadEvent filters the current event and swaps it into the event scenes.
// A store without source or events leaves the event scenes empty. Caller
// holds mu.
func (o *Orchestrator) loadEvent(ctx context.Context) error {
	if _, ok := o.store.Current(); !ok {
		if o.store.Source() == nil {
			o.logger.Info("No data file selected, skipping event loading")
		}
		o.scenes.ReplaceEventData(ctx, nil)
		return nil
	}
	recs, err := o.store.LoadCurrentEvent(ctx, o.filter())
	if stderrors.Is(err, trajectory.ErrNoSource) {
		return nil
	}
	if err != nil {
		return err
	}
	o.scenes.ReplaceEventData(ctx, []*scene.Element{TracksElement(recs)})
	o.savePosition(ctx)
	return nil
}

func (o *Orchestrator) filter() trajectory.Filter {
	return trajectory.Filter{KinECutMeV: o.cfg.Cuts.KinEMeV, LengthCutCm: o.cfg.Cuts.LengthCm}
}

func (o *Orchestrator) savePosition(ctx context.Context) {
	if o.positions == nil || o.dataURI == "" {
		return
	}
	id, ok := o.store.Current()
	if !ok {
		return
	}
	pos := &state.Position{Source: o.dataURI, Geometry: o.geometryPath, EventID: id}
	if err := o.positions.Set(ctx, pos); err != nil {
		o.logger.Warn("saving position", "error", err)
	}
}

// TracksElement builds the "Tracks" container: one line per record, styled
// by PDG code, with points converted to centimetres.
func TracksElement(recs []trajectory.Record) *scene.Element {
	tracks := scene.NewGroup(TracksName)
	for i := range recs {
		r := &recs[i]
		n := r.Points()
		pts := make([]math32.Vector3, n)
		for k := 0; k < n; k++ {
			pts[k] = math32.Vec3(
				float32(r.X[k]*trajectory.MMToCm),
				float32(r.Y[k]*trajectory.MMToCm),
				float32(r.Z[k]*trajectory.MMToCm),
			)
		}
		ls := trajectory.StyleFor(r.PDG)
		tracks.Add(scene.NewLine(r.Name(), pts, scene.Style{Color: ls.Color, Width: ls.Width, Dashed: ls.Dashed}))
	}
	return tracks
}

// Next moves to the next event id and reloads the event scenes. It
// returns false, leaving everything unchanged, at a boundary or when the
// event cannot be read.
func (o *Orchestrator) Next(ctx context.Context) (bool, error) {
	return o.navigate(ctx, (*trajectory.Store).Next)
}

// Previous moves to the previous event id.
func (o *Orchestrator) Previous(ctx context.Context) (bool, error) {
	return o.navigate(ctx, (*trajectory.Store).Previous)
}

func (o *Orchestrator) navigate(ctx context.Context, step func(*trajectory.Store) bool) (bool, error) {
	o.mu.Lock()
	mark := o.store.Mark()
	if !step(o.store) {
		o.mu.Unlock()
		return false, nil
	}
	if err := o.loadEvent(ctx); err != nil {
		o.store.Restore(mark)
		o.mu.Unlock()
		return false, err
	}
	up := o.update(UpdateEvent)
	o.mu.Unlock()

	o.notify(up)
	return true, nil
}

// Select jumps to event id. On failure the previous event stays current.
func (o *Orchestrator) Select(ctx context.Context, id int64) error {
	o.mu.Lock()
	mark := o.store.Mark()
	if err := o.store.Select(id); err != nil {
		o.mu.Unlock()
		return err
	}
	if err := o.loadEvent(ctx); err != nil {
		o.store.Restore(mark)
		o.mu.Unlock()
		return err
	}
	up := o.update(UpdateEvent)
	o.mu.Unlock()

	o.notify(up)
	return nil
}

// SetCuts changes the track selection and re-filters the current event.
func (o *Orchestrator) SetCuts(ctx context.Context, f trajectory.Filter) error {
	if err := errors.ValidateCut("kinetic energy cut", f.KinECutMeV); err != nil {
		return err
	}
	if err := errors.ValidateCut("length cut", f.LengthCutCm); err != nil {
		return err
	}
	o.mu.Lock()
	prev := o.cfg.Cuts
	o.cfg.Cuts = config.CutsConfig{KinEMeV: f.KinECutMeV, LengthCm: f.LengthCutCm}
	if err := o.loadEvent(ctx); err != nil {
		o.cfg.Cuts = prev
		o.mu.Unlock()
		return err
	}
	up := o.update(UpdateEvent)
	o.mu.Unlock()

	o.notify(up)
	return nil
}

// SetDepth sets the projection depth used by subsequent imports.
func (o *Orchestrator) SetDepth(d float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Projection.Depth = d
	o.scenes.SetDepth(float32(d))
}

// Reload re-reads the geometry file and re-imports the display extract.
// The event scenes are kept.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	path := o.geometryPath
	o.mu.Unlock()
	if path == "" {
		return errors.New(errors.ErrCodeGeometryLoad, "no geometry loaded")
	}

	h := geometry.New(geometry.WithLogger(o.logger))
	if err := h.Load(ctx, path); err != nil {
		return err
	}

	o.mu.Lock()
	err := o.applyGeometry(ctx, h, path, false)
	up := o.update(UpdateGeometry)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.notify(up)
	return nil
}

// Summary returns the event summary.
func (o *Orchestrator) Summary() trajectory.Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary()
}

func (o *Orchestrator) summary() trajectory.Summary {
	sum := o.store.Summary()
	sum.Filter = o.filter()
	return sum
}

// Events returns the sorted event ids of the open source.
func (o *Orchestrator) Events() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Index()
}

// Snapshot returns a consistent copy of all scenes.
func (o *Orchestrator) Snapshot() scene.Snapshot {
	return o.scenes.Snapshot()
}

// Scenes returns the scene set.
func (o *Orchestrator) Scenes() *scene.Set { return o.scenes }

// GeometryPath returns the loaded geometry file.
func (o *Orchestrator) GeometryPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.geometryPath
}

// Detector is a detector subsystem: a direct daughter of the hall.
type Detector struct {
	Name      string `json:"name"`
	Volume    string `json:"volume"`
	Copy      int    `json:"copy"`
	Assembly  bool   `json:"assembly"`
	Daughters int    `json:"daughters"`
}

// Detectors lists the detector subsystems of the loaded geometry.
func (o *Orchestrator) Detectors() []Detector {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hier.Loaded() {
		return nil
	}
	var out []Detector
	for _, n := range o.hier.Detectors(o.cfg.Geometry.Hall) {
		out = append(out, Detector{
			Name:      n.Name,
			Volume:    n.VolumeName(),
			Copy:      n.Copy,
			Assembly:  n.IsAssembly(),
			Daughters: len(n.Children()),
		})
	}
	return out
}

// TopNode builds the unprojected hall tree at the top-node vis level for
// the 3D view. It is not cached or persisted.
func (o *Orchestrator) TopNode() (*scene.Element, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hier.Loaded() {
		return nil, errors.New(errors.ErrCodeGeometryExtract, "no geometry loaded")
	}
	hall := o.hier.LocateHall(o.cfg.Geometry.Hall)
	ex := gentle.Build(o.hier, hall, o.extractOptions(o.cfg.Geometry.TopVisLevel))
	return gentle.Import(ex), nil
}

// Subscribe registers l and returns a function that removes it.
func (o *Orchestrator) Subscribe(l Listener) (unsubscribe func()) {
	o.lmu.Lock()
	defer o.lmu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	return func() {
		o.lmu.Lock()
		defer o.lmu.Unlock()
		delete(o.listeners, id)
	}
}

// update builds a listener update. Caller holds mu.
func (o *Orchestrator) update(kind UpdateKind) Update {
	return Update{Kind: kind, Type: kind.String(), Version: o.scenes.Version(), Summary: o.summary()}
}

func (o *Orchestrator) notify(ups ...Update) {
	o.lmu.Lock()
	ls := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		ls = append(ls, l)
	}
	o.lmu.Unlock()
	for _, up := range ups {
		for _, l := range ls {
			l(up)
		}
	}
}

// Bind registers the orchestrator's handlers on d.
func (o *Orchestrator) Bind(d *Dispatcher) {
	d.Register(ActionNext, func(ctx context.Context, _ string) (bool, error) { return o.Next(ctx) })
	d.Register(ActionPrevious, func(ctx context.Context, _ string) (bool, error) { return o.Previous(ctx) })
	d.Register(ActionSelect, func(ctx context.Context, arg string) (bool, error) {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return false, errors.New(errors.ErrCodeInvalidInput, "invalid event id %q", arg)
		}
		if err := o.Select(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	})
	d.Register(ActionReload, func(ctx context.Context, _ string) (bool, error) {
		if err := o.Reload(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
	d.Register(ActionSave, func(ctx context.Context, arg string) (bool, error) {
		base, ext := SplitOutput(arg)
		_, err := o.SaveDisplays(ctx, base, ext)
		return false, err
	})
}

// Close releases the data source.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Close()
}
