package viewer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/evdisplay/pkg/config"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/scene"
	"github.com/matzehuels/evdisplay/pkg/state"
	"github.com/matzehuels/evdisplay/pkg/trajectory"

	_ "modernc.org/sqlite"
)

func copyGeometry(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile("../geometry/testdata/detector.gdml")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "detector.gdml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func rec(evt, tid, pid int64, pdg int32, kinE float64, zs ...float64) trajectory.Record {
	r := trajectory.Record{EventID: evt, TrackID: tid, ParentID: pid, PDG: pdg, KinE: kinE, NPoints: len(zs)}
	for _, z := range zs {
		r.X = append(r.X, 0)
		r.Y = append(r.Y, 0)
		r.Z = append(r.Z, z)
	}
	return r
}

func writeEvents(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "events.db")
	recs := []trajectory.Record{
		rec(1, 1, 0, 13, 5000, 0, 1000),
		rec(1, 2, 1, 11, 50, 0, 200),
		rec(1, 3, 1, 22, 1, 0, 200),
		rec(2, 1, 0, 2212, 800, 0, 100),
		rec(3, 1, 0, 211, 300, 0, 50),
		rec(3, 2, 1, 111, 100, 0, 5),
		rec(5, 1, 0, 13, 10, 0, 10),
	}
	if err := trajectory.WriteSQLite(context.Background(), path, recs); err != nil {
		t.Fatal(err)
	}
	return path
}

type memPositions struct {
	mu  sync.Mutex
	pos map[string]state.Position
}

func (m *memPositions) Get(_ context.Context, source string) (*state.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pos[source]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memPositions) Set(_ context.Context, p *state.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos[p.Source] = *p
	return nil
}

func start(t *testing.T, positions PositionStore) (*Orchestrator, string, string) {
	t.Helper()
	dir := t.TempDir()
	geo := copyGeometry(t, dir)
	data := writeEvents(t, dir)
	o := New(Options{Config: config.Default(), Positions: positions})
	t.Cleanup(func() { o.Close() })
	if err := o.Start(context.Background(), geo, data); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return o, geo, data
}

func TestStart(t *testing.T) {
	o, geo, _ := start(t, nil)

	if _, err := os.Stat(strings.TrimSuffix(geo, ".gdml") + config.DefaultExtractSuffix); err != nil {
		t.Errorf("extract file not written: %v", err)
	}

	sum := o.Summary()
	if sum.EventID != 1 || sum.Events != 4 || sum.Tracks != 2 {
		t.Errorf("Summary() = %+v", sum)
	}

	snap := o.Snapshot()
	if len(snap.Global.Elements) != 1 || len(snap.Event.Elements) != 1 {
		t.Fatalf("scenes hold %d geometry and %d event elements", len(snap.Global.Elements), len(snap.Event.Elements))
	}
	tracks := snap.Event.Elements[0]
	if tracks.Name != TracksName || len(tracks.Children) != 2 || tracks.Children[1].Name != "Track 2" {
		t.Errorf("tracks = %s with %d children", tracks.Name, len(tracks.Children))
	}
	for _, name := range []string{"zx", "zy"} {
		v, ok := snap.View(name)
		if !ok {
			t.Fatalf("missing view %s", name)
		}
		if len(v.Geometry.Items) < 2 || v.Geometry.Items[0].Kind != scene.KindAxes {
			t.Errorf("%s geometry layer = %d items", name, len(v.Geometry.Items))
		}
		if len(v.Event.Items) != 2 {
			t.Errorf("%s event layer = %d items, want 2", name, len(v.Event.Items))
		}
	}

	if got := len(o.Detectors()); got != 5 {
		t.Errorf("Detectors() = %d, want 5", got)
	}
}

func TestNavigation(t *testing.T) {
	o, _, _ := start(t, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var updates []Update
	unsubscribe := o.Subscribe(func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	defer unsubscribe()

	if ok, err := o.Previous(ctx); ok || err != nil {
		t.Errorf("Previous() at first event = %v, %v", ok, err)
	}
	if ok, err := o.Next(ctx); !ok || err != nil {
		t.Fatalf("Next() = %v, %v", ok, err)
	}
	if sum := o.Summary(); sum.EventID != 2 || sum.Tracks != 1 {
		t.Errorf("after Next: %+v", sum)
	}
	o.Next(ctx) // 3
	if ok, _ := o.Next(ctx); ok {
		t.Error("Next() from 3 in {1,2,3,5} should fail")
	}
	if err := o.Select(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if err := o.Select(ctx, 4); !errors.Is(err, errors.ErrCodeEventRange) {
		t.Errorf("Select(4) = %v, want EVENT_RANGE", err)
	}
	if sum := o.Summary(); sum.EventID != 5 {
		t.Errorf("failed Select moved to %d", sum.EventID)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 3 {
		t.Errorf("got %d updates, want 3", len(updates))
	}
	for _, u := range updates {
		if u.Kind != UpdateEvent || u.Type != "event" {
			t.Errorf("update = %+v", u)
		}
	}
}

func corruptEvent(t *testing.T, path string, evt int64) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE trk SET trackPointX = x'01020304050607' WHERE evtID = ?", evt); err != nil {
		t.Fatal(err)
	}
}

func TestUnreadableEventKeepsCurrent(t *testing.T) {
	o, _, data := start(t, nil)
	ctx := context.Background()
	corruptEvent(t, data, 2)

	var mu sync.Mutex
	var updates int
	unsubscribe := o.Subscribe(func(Update) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	defer unsubscribe()

	check := func(step string) {
		t.Helper()
		if sum := o.Summary(); sum.EventID != 1 || sum.Tracks != 2 {
			t.Errorf("after %s: Summary() = %+v, want event 1 with 2 tracks", step, sum)
		}
		if ev := o.Snapshot().Event; len(ev.Elements) != 1 || len(ev.Elements[0].Children) != 2 {
			t.Errorf("after %s: event scene changed", step)
		}
	}

	ok, err := o.Next(ctx)
	if ok || !errors.Is(err, errors.ErrCodeDataSource) {
		t.Fatalf("Next() onto unreadable event = %v, %v; want false, DATA_SOURCE", ok, err)
	}
	check("Next")

	if err := o.Select(ctx, 2); !errors.Is(err, errors.ErrCodeDataSource) {
		t.Fatalf("Select(2) = %v, want DATA_SOURCE", err)
	}
	check("Select")

	// the store still steps from event 1
	if ok, err := o.Previous(ctx); ok || err != nil {
		t.Errorf("Previous() = %v, %v; want false, nil", ok, err)
	}
	if err := o.Select(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if sum := o.Summary(); sum.EventID != 3 || sum.Tracks != 1 {
		t.Errorf("after Select(3): %+v", sum)
	}

	mu.Lock()
	defer mu.Unlock()
	if updates != 1 {
		t.Errorf("got %d updates, want 1", updates)
	}
}

func TestSetCutsFailureKeepsCuts(t *testing.T) {
	o, _, data := start(t, nil)
	ctx := context.Background()
	if err := o.Select(ctx, 3); err != nil {
		t.Fatal(err)
	}
	corruptEvent(t, data, 3)

	before := o.Summary()
	err := o.SetCuts(ctx, trajectory.Filter{KinECutMeV: 1, LengthCutCm: 1})
	if !errors.Is(err, errors.ErrCodeDataSource) {
		t.Fatalf("SetCuts() = %v, want DATA_SOURCE", err)
	}
	if after := o.Summary(); after != before {
		t.Errorf("Summary() = %+v, want %+v", after, before)
	}
}

func TestSetCuts(t *testing.T) {
	o, _, _ := start(t, nil)
	ctx := context.Background()
	if err := o.SetCuts(ctx, trajectory.Filter{}); err != nil {
		t.Fatal(err)
	}
	if got := o.Summary().Tracks; got != 3 {
		t.Errorf("unfiltered tracks = %d, want 3", got)
	}
	if err := o.SetCuts(ctx, trajectory.Filter{KinECutMeV: -1}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("negative cut = %v, want INVALID_CONFIG", err)
	}
}

func TestStartReplaceOnSuccess(t *testing.T) {
	o, geo, _ := start(t, nil)
	before := o.Snapshot().Version

	err := o.Start(context.Background(), geo, filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, errors.ErrCodeDataSource) {
		t.Fatalf("Start(missing data) = %v, want DATA_SOURCE", err)
	}
	if sum := o.Summary(); sum.Events != 4 || sum.EventID != 1 {
		t.Errorf("previous data replaced: %+v", sum)
	}
	if o.Snapshot().Version != before {
		t.Error("failed start changed the scenes")
	}

	bad := filepath.Join(t.TempDir(), "bad.gdml")
	os.WriteFile(bad, []byte("<gdml><structure/></gdml>"), 0o644)
	if err := o.Start(context.Background(), bad, ""); !errors.Is(err, errors.ErrCodeGeometryLoad) {
		t.Errorf("Start(no world) = %v, want GEOMETRY_LOAD", err)
	}
	if o.GeometryPath() != geo {
		t.Error("failed geometry load replaced the active geometry")
	}
}

func TestStartWithoutData(t *testing.T) {
	dir := t.TempDir()
	o := New(Options{})
	defer o.Close()
	if err := o.Start(context.Background(), copyGeometry(t, dir), ""); err != nil {
		t.Fatal(err)
	}
	if ok, err := o.Next(context.Background()); ok || err != nil {
		t.Errorf("Next() without data = %v, %v", ok, err)
	}
	if snap := o.Snapshot(); len(snap.Event.Elements) != 0 {
		t.Error("event scene should be empty")
	}
	if err := o.Start(context.Background(), "", ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Start without geometry = %v", err)
	}
}

func TestResume(t *testing.T) {
	positions := &memPositions{pos: make(map[string]state.Position)}
	o, geo, data := start(t, positions)
	if err := o.Select(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if p := positions.pos[data]; p.EventID != 3 || p.Geometry != geo {
		t.Fatalf("stored position = %+v", p)
	}

	again := New(Options{Positions: positions})
	defer again.Close()
	if err := again.Start(context.Background(), geo, data); err != nil {
		t.Fatal(err)
	}
	if sum := again.Summary(); sum.EventID != 3 {
		t.Errorf("resumed at %d, want 3", sum.EventID)
	}
}

func TestSaveDisplays(t *testing.T) {
	o, _, _ := start(t, nil)
	base := filepath.Join(t.TempDir(), "out", "run")

	paths, err := o.SaveDisplays(context.Background(), base, ".svg")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{base + "_3d.svg", base + "_zx.svg", base + "_zy.svg"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], p)
		}
		data, err := os.ReadFile(p)
		if err != nil || !strings.HasPrefix(string(data), "<svg") {
			t.Errorf("%s: %v", p, err)
		}
	}

	if _, err := o.SaveDisplays(context.Background(), base, "gif"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("gif = %v, want INVALID_FORMAT", err)
	}
}

func TestSplitOutput(t *testing.T) {
	tests := []struct{ in, base, ext string }{
		{"out/run.png", "out/run", "png"},
		{"run.JSON", "run", "json"},
		{"run", "run", "svg"},
		{"run.v2", "run.v2", "svg"},
	}
	for _, tt := range tests {
		base, ext := SplitOutput(tt.in)
		if base != tt.base || ext != tt.ext {
			t.Errorf("SplitOutput(%q) = %q, %q; want %q, %q", tt.in, base, ext, tt.base, tt.ext)
		}
	}
}

func TestDispatcher(t *testing.T) {
	o, _, _ := start(t, nil)
	d := NewDispatcher()
	o.Bind(d)
	ctx := context.Background()

	if changed, err := d.Dispatch(ctx, ActionNext, ""); !changed || err != nil {
		t.Errorf("next = %v, %v", changed, err)
	}
	if changed, err := d.Dispatch(ctx, ActionSelect, "5"); !changed || err != nil {
		t.Errorf("select = %v, %v", changed, err)
	}
	if _, err := d.Dispatch(ctx, ActionSelect, "five"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("select five = %v", err)
	}
	if _, err := d.Dispatch(ctx, Action("zoom"), ""); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("zoom = %v", err)
	}
	if changed, err := d.Dispatch(ctx, ActionReload, ""); !changed || err != nil {
		t.Errorf("reload = %v, %v", changed, err)
	}
	if len(d.Actions()) != 5 {
		t.Errorf("Actions() = %v", d.Actions())
	}
}

func TestReplaceEventDataEmpties(t *testing.T) {
	o, _, _ := start(t, nil)
	ctx := context.Background()
	o.Scenes().ReplaceEventData(ctx, nil)
	snap := o.Snapshot()
	for _, v := range snap.Views {
		if len(v.Event.Items) != 0 {
			t.Errorf("%s event layer not emptied", v.Projection.Name)
		}
	}
}

func TestTopNode(t *testing.T) {
	o, _, _ := start(t, nil)
	top, err := o.TopNode()
	if err != nil {
		t.Fatal(err)
	}
	if top.Count(scene.KindShape) == 0 {
		t.Error("top node has no shapes")
	}
}

func TestWatch(t *testing.T) {
	o, geo, _ := start(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reloaded := make(chan struct{}, 1)
	o.Subscribe(func(u Update) {
		if u.Kind == UpdateGeometry {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- o.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	data, _ := os.ReadFile(geo)
	if err := os.WriteFile(geo, append(data, '\n'), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-ctx.Done():
		t.Fatal("geometry change did not trigger a reload")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() = %v", err)
	}
}
