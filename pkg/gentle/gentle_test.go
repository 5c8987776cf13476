package gentle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/config"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/geometry"
	"github.com/matzehuels/evdisplay/pkg/scene"
)

const testGeometry = "../geometry/testdata/detector.gdml"

func loadHierarchy(t *testing.T) *geometry.Hierarchy {
	t.Helper()
	h := geometry.New()
	if err := h.Load(context.Background(), testGeometry); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return h
}

func findShape(root *Shape, name string) *Shape {
	var found *Shape
	root.walk(func(s *Shape) {
		if found == nil && s.Name == name {
			found = s
		}
	})
	return found
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestBuildDefaults(t *testing.T) {
	h := loadHierarchy(t)
	hall := h.LocateHall(geometry.DefaultHall)
	ex := Build(h, hall, Options{VisLevel: 5, UseDefaults: true})

	if ex.Name != RecordName || ex.Hall != "hallPV" {
		t.Errorf("extract = %s rooted at %s", ex.Name, ex.Hall)
	}
	if ex.Root.Visible || !ex.Root.Daughters {
		t.Errorf("hall visible=%v daughters=%v, want invisible with visible daughters", ex.Root.Visible, ex.Root.Daughters)
	}
	if hall.Attr.Visible || !hall.Attr.VisibleDaughters {
		t.Error("hall node attributes should be updated too")
	}
	for _, c := range ex.Root.Children {
		if c.Assembly {
			if c.Visible {
				t.Errorf("assembly %s must not be visible", c.Name)
			}
			continue
		}
		if !c.Visible {
			t.Errorf("hall daughter %s should default to visible", c.Name)
		}
	}
	if n := ex.Root.Count(); n != 12 {
		t.Errorf("Count() = %d, want 12", n)
	}
}

func TestBuildVisLevel(t *testing.T) {
	h := loadHierarchy(t)
	ex := Build(h, h.LocateHall(geometry.DefaultHall), Options{VisLevel: 1, UseDefaults: true})
	if n := ex.Root.Count(); n != 6 {
		t.Errorf("vis level 1 Count() = %d, want hall plus 5 detectors", n)
	}
}

func TestBuildBakesGlobalTransform(t *testing.T) {
	h := loadHierarchy(t)
	ex := Build(h, h.LocateHall(geometry.DefaultHall), Options{VisLevel: 5, UseDefaults: true})

	tpc := findShape(ex.Root, "TPC_0")
	if tpc == nil || len(tpc.Vertices) != 8 {
		t.Fatalf("TPC_0 = %+v", tpc)
	}
	// FLArE at z=-2000mm, TPC_0 at z=-1000mm inside it, half length 250mm.
	for _, v := range tpc.Vertices {
		if v.Z < -325.01 || v.Z > -274.99 {
			t.Errorf("TPC_0 vertex z = %v cm, want within [-325, -275]", v.Z)
		}
	}
}

func TestRules(t *testing.T) {
	h := loadHierarchy(t)
	opts := Options{
		VisLevel: 5,
		Rules: []Rule{
			{Match: "FLArE", Directives: []Directive{
				{Depth: 1, Filter: "TPC", Transparency: intp(80)},
				{Depth: 1, Filter: "Absorber", Visible: boolp(false)},
			}},
			{Match: "TPC_1", Exact: true, Directives: []Directive{
				{Depth: 0, Transparency: intp(10), Color: "#00ff00"},
			}},
			{Match: "FORMOSA", Directives: []Directive{
				{Depth: 0, Visible: boolp(false)},
				{Depth: 1, Color: "#ff0000"},
			}},
		},
	}
	ex := Build(h, h.LocateHall(geometry.DefaultHall), opts)

	if s := findShape(ex.Root, "TPC_0"); s.Transparency != 80 {
		t.Errorf("TPC_0 transparency = %d, want 80", s.Transparency)
	}
	if s := findShape(ex.Root, "TPC_1"); s.Transparency != 10 || s.Color != "#00ff00" {
		t.Errorf("TPC_1 = %d %s, want later rule to win", s.Transparency, s.Color)
	}
	if s := findShape(ex.Root, "AbsorberPV"); s.Visible || s.Color != "#808080" {
		t.Errorf("AbsorberPV visible=%v color=%s", s.Visible, s.Color)
	}
	if s := findShape(ex.Root, "FORMOSAPV"); s.Visible {
		t.Error("FORMOSAPV should be hidden by depth-0 directive")
	}
	if s := findShape(ex.Root, "Shield_0"); s.Color != "#ff0000" {
		t.Errorf("Shield_0 color = %q", s.Color)
	}

	opts.UseDefaults = true
	ex = Build(h, h.LocateHall(geometry.DefaultHall), opts)
	if s := findShape(ex.Root, "TPC_0"); s.Transparency != 0 {
		t.Errorf("UseDefaults should skip rules, got transparency %d", s.Transparency)
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig([]config.RuleConfig{{
		Match: "FASER", Exact: true,
		Directives: []config.DirectiveConfig{{Depth: 2, Filter: "Trk", Transparency: intp(50), Visible: boolp(true), Color: "blue"}},
	}})
	if len(rules) != 1 || !rules[0].Exact || rules[0].Match != "FASER" {
		t.Fatalf("rules = %+v", rules)
	}
	d := rules[0].Directives[0]
	if d.Depth != 2 || d.Filter != "Trk" || *d.Transparency != 50 || !*d.Visible || d.Color != "blue" {
		t.Errorf("directive = %+v", d)
	}
}

func TestPersistReload(t *testing.T) {
	h := loadHierarchy(t)
	ex := Build(h, h.LocateHall(geometry.DefaultHall), Options{VisLevel: 5, UseDefaults: true})
	path := filepath.Join(t.TempDir(), "detector_gentle.json")

	if err := Persist(ex, path); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	got, err := Reload(path)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got.Root.Count() != ex.Root.Count() || got.Hall != ex.Hall || got.VisLevel != 5 {
		t.Errorf("round trip changed the extract: %d shapes, hall %s", got.Root.Count(), got.Hall)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReloadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.json")},
		{"corrupt", write("corrupt.json", "{not json")},
		{"no record", write("other.json", `{"records":{"Other":{"name":"Other","root":{"name":"x"}}}}`)},
		{"empty record", write("empty.json", `{"records":{"Gentle":{"name":"Gentle"}}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reload(tt.path)
			if !errors.Is(err, errors.ErrCodeGeometryExtract) {
				t.Errorf("Reload = %v, want GEOMETRY_EXTRACT", err)
			}
		})
	}
}

func TestImport(t *testing.T) {
	h := loadHierarchy(t)
	ex := Build(h, h.LocateHall(geometry.DefaultHall), Options{VisLevel: 5, UseDefaults: true})
	el := Import(ex)

	if el.Name != RecordName || len(el.Children) != 1 {
		t.Fatalf("Import root = %s with %d children", el.Name, len(el.Children))
	}
	hall := el.Children[0]
	if hall.Visible || hall.Kind != scene.KindShape {
		t.Errorf("hall element visible=%v kind=%v", hall.Visible, hall.Kind)
	}

	items := scene.NewManager(scene.ZX).Project(el)
	for _, it := range items {
		if it.Name == "hallPV" {
			t.Error("invisible hall must not be projected")
		}
		if it.Name == "FASER2PV" {
			t.Error("assembly must not be projected")
		}
	}
	// 12 shapes minus hall, FASER2 assembly and the outline-less OddPV.
	if len(items) != 9 {
		t.Errorf("projected %d items, want 9", len(items))
	}
}

func TestRunnerCaches(t *testing.T) {
	ctx := context.Background()
	h := loadHierarchy(t)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	req := Request{
		Hall:    geometry.DefaultHall,
		Path:    filepath.Join(t.TempDir(), "detector_gentle.json"),
		Options: Options{VisLevel: 5},
	}

	first, err := r.Generate(ctx, h, req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.CacheHit {
		t.Error("first Generate should miss the cache")
	}
	if first.Shapes != 12 || first.Element == nil {
		t.Errorf("result = %d shapes", first.Shapes)
	}

	if err := os.Remove(req.Path); err != nil {
		t.Fatal(err)
	}
	second, err := r.Generate(ctx, h, req)
	if err != nil {
		t.Fatalf("Generate (cached): %v", err)
	}
	if !second.CacheHit {
		t.Error("second Generate should hit the cache")
	}
	if _, err := os.Stat(req.Path); err != nil {
		t.Errorf("extract file must be rewritten on a cache hit: %v", err)
	}

	req.Refresh = true
	third, err := r.Generate(ctx, h, req)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("Refresh should bypass the cache")
	}

	req.Refresh = false
	req.Options.VisLevel = 2
	fourth, err := r.Generate(ctx, h, req)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheHit {
		t.Error("different options should use a different cache key")
	}
}

func TestRunnerErrors(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)

	_, err := r.Generate(ctx, geometry.New(), Request{Path: "x.json", Options: Options{VisLevel: 5}})
	if !errors.Is(err, errors.ErrCodeGeometryExtract) {
		t.Errorf("Generate without geometry = %v, want GEOMETRY_EXTRACT", err)
	}

	_, err = r.Generate(ctx, loadHierarchy(t), Request{Path: "x.json", Options: Options{VisLevel: 0}})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Generate with vis level 0 = %v, want INVALID_INPUT", err)
	}
}
