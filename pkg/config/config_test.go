package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/evdisplay/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadAndValidate(t *testing.T) {
	p := writeConfig(t, `
[cuts]
kine_mev = 25.0
length_cm = 2.5

[projection]
depth = -10.0

[geometry]
hall = "cavernPV"
vis_level = 4
use_defaults = false

[[geometry.rules]]
match = "FLArE"

[[geometry.rules.directives]]
depth = 1
transparency = 80

[[geometry.rules.directives]]
depth = 2
filter = "Absorber"
visible = false

[logging]
level = "debug"
`)

	_, err := Load(p)
	if err == nil {
		t.Fatal("negative projection depth should fail validation")
	}
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}

	p = writeConfig(t, strings.Replace(mustRead(t, p), "depth = -10.0", "depth = 10.0", 1))
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cuts.KinEMeV != 25 || cfg.Cuts.LengthCm != 2.5 {
		t.Errorf("cuts = %+v", cfg.Cuts)
	}
	if cfg.Projection.Depth != 10 {
		t.Errorf("projection.depth = %v, want 10", cfg.Projection.Depth)
	}
	if cfg.Geometry.Hall != "cavernPV" || cfg.Geometry.VisLevel != 4 {
		t.Errorf("geometry = %+v", cfg.Geometry)
	}
	// Unset keys keep defaults.
	if cfg.Geometry.TopVisLevel != DefaultTopVisLevel {
		t.Errorf("top_vis_level = %d, want %d", cfg.Geometry.TopVisLevel, DefaultTopVisLevel)
	}
	if cfg.Geometry.ExtractSuffix != DefaultExtractSuffix {
		t.Errorf("extract_suffix = %q", cfg.Geometry.ExtractSuffix)
	}

	if len(cfg.Geometry.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(cfg.Geometry.Rules))
	}
	r := cfg.Geometry.Rules[0]
	if r.Match != "FLArE" || len(r.Directives) != 2 {
		t.Fatalf("rule = %+v", r)
	}
	if d := r.Directives[0]; d.Transparency == nil || *d.Transparency != 80 || d.Visible != nil {
		t.Errorf("directive[0] = %+v", d)
	}
	if d := r.Directives[1]; d.Visible == nil || *d.Visible || d.Filter != "Absorber" {
		t.Errorf("directive[1] = %+v", d)
	}
}

func mustRead(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load(missing) = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	p := writeConfig(t, "[cuts]\nkine_mev = 5.0\n")
	t.Setenv("EVDISPLAY_CUTS_KINE_MEV", "42")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cuts.KinEMeV != 42 {
		t.Errorf("kine_mev = %v, want env override 42", cfg.Cuts.KinEMeV)
	}
}

func TestValidate(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative kine cut", func(c *Config) { c.Cuts.KinEMeV = -1 }, true},
		{"negative length cut", func(c *Config) { c.Cuts.LengthCm = -0.5 }, true},
		{"empty hall", func(c *Config) { c.Geometry.Hall = "" }, true},
		{"zero vis level", func(c *Config) { c.Geometry.VisLevel = 0 }, true},
		{"suffix with slash", func(c *Config) { c.Geometry.ExtractSuffix = "/x.json" }, true},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"redis with addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "localhost:6379" }, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"empty rule match", func(c *Config) {
			c.Geometry.Rules = []RuleConfig{{Match: ""}}
		}, true},
		{"directive too deep", func(c *Config) {
			c.Geometry.Rules = []RuleConfig{{Match: "A", Directives: []DirectiveConfig{{Depth: 5}}}}
		}, true},
		{"transparency out of range", func(c *Config) {
			c.Geometry.Rules = []RuleConfig{{Match: "A", Directives: []DirectiveConfig{{Depth: 1, Transparency: intp(150)}}}}
		}, true},
		{"valid rule", func(c *Config) {
			c.Geometry.Rules = []RuleConfig{{Match: "A", Directives: []DirectiveConfig{{Depth: 4, Transparency: intp(50)}}}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Cuts.KinEMeV = 3

	if err := Write(cfg, p, false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(cfg, p, false); err == nil {
		t.Error("Write without overwrite should refuse an existing file")
	}
	if err := Write(cfg, p, true); err != nil {
		t.Errorf("Write with overwrite: %v", err)
	}

	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Cuts.KinEMeV != 3 {
		t.Errorf("kine_mev = %v, want 3", got.Cuts.KinEMeV)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Default()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[cuts]", "kine_mev = 10.0", `hall = "hallPV"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("encoded config missing %q:\n%s", want, buf.String())
		}
	}
}

func TestExtractPath(t *testing.T) {
	cfg := Default()
	tests := []struct {
		in, want string
	}{
		{"geom/FPF.gdml", "geom/FPF_gentle.json"},
		{"detector.GDML", "detector_gentle.json"},
		{"noext", "noext_gentle.json"},
	}
	for _, tt := range tests {
		if got := cfg.ExtractPath(tt.in); got != tt.want {
			t.Errorf("ExtractPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
