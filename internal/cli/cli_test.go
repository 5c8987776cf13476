package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/matzehuels/evdisplay/pkg/config"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/observability"
	"github.com/matzehuels/evdisplay/pkg/trajectory"
)

func newTestCLI() *CLI {
	return New(io.Discard, LogInfo)
}

// testFixture copies the test geometry and writes a small SQLite event file.
func testFixture(t *testing.T) (geo, data string) {
	t.Helper()
	dir := t.TempDir()
	gdml, err := os.ReadFile("../../pkg/geometry/testdata/detector.gdml")
	if err != nil {
		t.Fatal(err)
	}
	geo = filepath.Join(dir, "detector.gdml")
	if err := os.WriteFile(geo, gdml, 0o644); err != nil {
		t.Fatal(err)
	}

	data = filepath.Join(dir, "events.db")
	recs := []trajectory.Record{
		{EventID: 3, TrackID: 1, PDG: 13, KinE: 500, NPoints: 2, X: []float64{0, 0}, Y: []float64{0, 0}, Z: []float64{0, 1000}},
		{EventID: 3, TrackID: 2, ParentID: 1, PDG: 11, KinE: 50, NPoints: 2, X: []float64{0, 0}, Y: []float64{0, 0}, Z: []float64{0, 100}},
		{EventID: 3, TrackID: 3, ParentID: 1, PDG: 22, KinE: 1, NPoints: 2, X: []float64{0, 0}, Y: []float64{0, 0}, Z: []float64{0, 100}},
		{EventID: 8, TrackID: 1, PDG: 211, KinE: 900, NPoints: 3, X: []float64{0, 5, 10}, Y: []float64{0, 0, 0}, Z: []float64{0, 50, 100}},
	}
	if err := trajectory.WriteSQLite(context.Background(), data, recs); err != nil {
		t.Fatal(err)
	}
	return geo, data
}

func TestRootCommand(t *testing.T) {
	root := newTestCLI().RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	sort.Strings(names)
	want := "cache completion config events geometry serve snapshot view"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("subcommands = %q, want %q", got, want)
	}

	// The root accepts the view flags.
	for _, f := range []string{"kine", "length", "save", "watch", "config", "verbose"} {
		if root.Flags().Lookup(f) == nil && root.PersistentFlags().Lookup(f) == nil {
			t.Errorf("root is missing flag --%s", f)
		}
	}
}

func TestRootRequiresGeometry(t *testing.T) {
	root := newTestCLI().RootCommand()
	root.SetArgs([]string{})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Error("expected usage error without a geometry file")
	}
}

func TestSetupVerbose(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644)

	t.Cleanup(observability.Reset)

	c := newTestCLI()
	c.configPath = path
	if err := c.setup(nil, nil); err != nil {
		t.Fatal(err)
	}
	if c.Logger.GetLevel() != LogWarn {
		t.Errorf("level = %v, want warn", c.Logger.GetLevel())
	}

	c.verbose = true
	if err := c.setup(nil, nil); err != nil {
		t.Fatal(err)
	}
	if c.Logger.GetLevel() != LogDebug {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}
}

func TestDisplayFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(*config.Config) bool
		wantErr errors.Code
	}{
		{
			name:  "unset flags keep config",
			args:  nil,
			check: func(c *config.Config) bool { return c.Cuts.KinEMeV == 25 && c.Geometry.Hall == "cavePV" },
		},
		{
			name:  "set flags override",
			args:  []string{"--kine=3", "--hall=hallPV", "--vis-level=2"},
			check: func(c *config.Config) bool { return c.Cuts.KinEMeV == 3 && c.Geometry.Hall == "hallPV" && c.Geometry.VisLevel == 2 },
		},
		{
			name:  "no-cache and no-resume",
			args:  []string{"--no-cache", "--no-resume"},
			check: func(c *config.Config) bool { return c.Cache.Backend == "none" && !c.State.Resume },
		},
		{
			name:    "negative cut",
			args:    []string{"--length=-1"},
			wantErr: errors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := config.Default()
			base.Cuts.KinEMeV = 25
			base.Geometry.Hall = "cavePV"

			var f displayFlags
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			f.register(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			got, err := f.apply(base, fs)
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("apply() error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(got) {
				t.Errorf("apply() = %+v", got)
			}
			if base.Cuts.KinEMeV != 25 {
				t.Error("apply() modified the base config")
			}
		})
	}
}

func TestSnapshotCommand(t *testing.T) {
	geo, data := testFixture(t)
	out := filepath.Join(t.TempDir(), "snap", "evt")

	c := newTestCLI()
	c.cfg = config.Default()
	c.cfg.Cache.Backend = "none"
	c.cfg.State.Resume = false

	cmd := c.snapshotCommand()
	cmd.SetArgs([]string{geo, data, "--event", "8", "-o", out + ".svg"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, view := range []string{"3d", "zx", "zy"} {
		if _, err := os.Stat(out + "_" + view + ".svg"); err != nil {
			t.Errorf("missing %s display: %v", view, err)
		}
	}
}

func TestSnapshotCommandBadEvent(t *testing.T) {
	geo, data := testFixture(t)
	c := newTestCLI()
	c.cfg = config.Default()
	c.cfg.Cache.Backend = "none"
	c.cfg.State.Resume = false

	cmd := c.snapshotCommand()
	cmd.SetArgs([]string{geo, data, "--event", "4", "-o", filepath.Join(t.TempDir(), "x")})
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, errors.ErrCodeEventRange) {
		t.Errorf("error = %v, want EVENT_RANGE", err)
	}
}
