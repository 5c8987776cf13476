// Package config loads evdisplay settings from a TOML file, environment
// variables (prefix EVDISPLAY_) and built-in defaults, in increasing order of
// precedence: defaults < file < environment. Command-line flags are applied
// on top by the CLI.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/matzehuels/evdisplay/pkg/errors"
)

// Default values shared by the CLI, the HTTP viewer and the tests.
const (
	DefaultKinECutMeV    = 10.0
	DefaultLengthCutCm   = 1.0
	DefaultDepth         = 0.0
	DefaultVisLevel      = 5
	DefaultTopVisLevel   = 6
	DefaultHall          = "hallPV"
	DefaultExtractSuffix = "_gentle.json"
	DefaultServerAddr    = "127.0.0.1:8080"
	DefaultCacheBackend  = "file"
	DefaultCachePrefix   = "evdisplay:"
	DefaultLogLevel      = "info"
)

// EnvPrefix is the prefix of environment overrides, e.g. EVDISPLAY_CUTS_KINE_MEV.
const EnvPrefix = "EVDISPLAY"

// Config is the complete viewer configuration.
type Config struct {
	Cuts       CutsConfig       `mapstructure:"cuts" toml:"cuts"`
	Projection ProjectionConfig `mapstructure:"projection" toml:"projection"`
	Geometry   GeometryConfig   `mapstructure:"geometry" toml:"geometry"`
	Cache      CacheConfig      `mapstructure:"cache" toml:"cache"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	State      StateConfig      `mapstructure:"state" toml:"state"`
	Logging    LoggingConfig    `mapstructure:"logging" toml:"logging"`
}

// CutsConfig holds the track selection thresholds.
type CutsConfig struct {
	KinEMeV  float64 `mapstructure:"kine_mev" toml:"kine_mev"`
	LengthCm float64 `mapstructure:"length_cm" toml:"length_cm"`
}

// ProjectionConfig holds the projection parameters.
type ProjectionConfig struct {
	Depth float64 `mapstructure:"depth" toml:"depth"`
}

// GeometryConfig controls hall lookup and extract generation.
type GeometryConfig struct {
	Hall          string       `mapstructure:"hall" toml:"hall"`
	VisLevel      int          `mapstructure:"vis_level" toml:"vis_level"`
	TopVisLevel   int          `mapstructure:"top_vis_level" toml:"top_vis_level"`
	ExtractSuffix string       `mapstructure:"extract_suffix" toml:"extract_suffix"`
	UseDefaults   bool         `mapstructure:"use_defaults" toml:"use_defaults"`
	Rules         []RuleConfig `mapstructure:"rules" toml:"rules,omitempty"`
}

// RuleConfig is one entry of the attribute rule table.
// Match selects nodes by name; Directives apply below the matched node.
type RuleConfig struct {
	Match      string            `mapstructure:"match" toml:"match"`
	Exact      bool              `mapstructure:"exact" toml:"exact,omitempty"`
	Directives []DirectiveConfig `mapstructure:"directives" toml:"directives"`
}

// DirectiveConfig sets attributes on nodes at a relative depth below a match.
// Unset pointer fields leave the attribute unchanged.
type DirectiveConfig struct {
	Depth        int    `mapstructure:"depth" toml:"depth"`
	Filter       string `mapstructure:"filter" toml:"filter,omitempty"`
	Transparency *int   `mapstructure:"transparency" toml:"transparency,omitempty"`
	Visible      *bool  `mapstructure:"visible" toml:"visible,omitempty"`
	Color        string `mapstructure:"color" toml:"color,omitempty"`
}

// CacheConfig selects the extract/index cache backend.
type CacheConfig struct {
	Backend       string `mapstructure:"backend" toml:"backend"`
	Dir           string `mapstructure:"dir" toml:"dir,omitempty"`
	RedisAddr     string `mapstructure:"redis_addr" toml:"redis_addr,omitempty"`
	RedisPassword string `mapstructure:"redis_password" toml:"redis_password,omitempty"`
	RedisDB       int    `mapstructure:"redis_db" toml:"redis_db,omitempty"`
	Prefix        string `mapstructure:"prefix" toml:"prefix"`
}

// ServerConfig configures the HTTP viewer.
type ServerConfig struct {
	Addr string `mapstructure:"addr" toml:"addr"`
}

// StateConfig controls persistence of the last viewed event.
type StateConfig struct {
	Resume bool   `mapstructure:"resume" toml:"resume"`
	Path   string `mapstructure:"path" toml:"path,omitempty"`
}

// LoggingConfig controls the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cuts:       CutsConfig{KinEMeV: DefaultKinECutMeV, LengthCm: DefaultLengthCutCm},
		Projection: ProjectionConfig{Depth: DefaultDepth},
		Geometry: GeometryConfig{
			Hall:          DefaultHall,
			VisLevel:      DefaultVisLevel,
			TopVisLevel:   DefaultTopVisLevel,
			ExtractSuffix: DefaultExtractSuffix,
		},
		Cache:   CacheConfig{Backend: DefaultCacheBackend, Prefix: DefaultCachePrefix},
		Server:  ServerConfig{Addr: DefaultServerAddr},
		State:   StateConfig{Resume: true},
		Logging: LoggingConfig{Level: DefaultLogLevel},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "evdisplay", "config.toml"), nil
}

// Load reads configuration from path. An empty path falls back to
// DefaultPath when that file exists, otherwise defaults and environment only.
// The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cuts.kine_mev", DefaultKinECutMeV)
	v.SetDefault("cuts.length_cm", DefaultLengthCutCm)

	v.SetDefault("projection.depth", DefaultDepth)

	v.SetDefault("geometry.hall", DefaultHall)
	v.SetDefault("geometry.vis_level", DefaultVisLevel)
	v.SetDefault("geometry.top_vis_level", DefaultTopVisLevel)
	v.SetDefault("geometry.extract_suffix", DefaultExtractSuffix)
	v.SetDefault("geometry.use_defaults", false)

	v.SetDefault("cache.backend", DefaultCacheBackend)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", DefaultCachePrefix)

	v.SetDefault("server.addr", DefaultServerAddr)

	v.SetDefault("state.resume", true)
	v.SetDefault("state.path", "")

	v.SetDefault("logging.level", DefaultLogLevel)
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := errors.ValidateCut("cuts.kine_mev", c.Cuts.KinEMeV); err != nil {
		return err
	}
	if err := errors.ValidateCut("cuts.length_cm", c.Cuts.LengthCm); err != nil {
		return err
	}
	if err := errors.ValidateCut("projection.depth", c.Projection.Depth); err != nil {
		return err
	}

	if c.Geometry.Hall == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "geometry.hall is required")
	}
	if c.Geometry.VisLevel < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "geometry.vis_level must be at least 1")
	}
	if c.Geometry.TopVisLevel < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "geometry.top_vis_level must be at least 1")
	}
	if c.Geometry.ExtractSuffix == "" || strings.ContainsAny(c.Geometry.ExtractSuffix, `/\`) {
		return errors.New(errors.ErrCodeInvalidConfig, "geometry.extract_suffix must be a non-empty file suffix")
	}
	for i, r := range c.Geometry.Rules {
		if err := errors.ValidatePattern(r.Match); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "geometry.rules[%d].match", i)
		}
		for j, d := range r.Directives {
			if d.Depth < 0 || d.Depth > MaxDirectiveDepth {
				return errors.New(errors.ErrCodeInvalidConfig,
					"geometry.rules[%d].directives[%d].depth must be between 0 and %d", i, j, MaxDirectiveDepth)
			}
			if d.Transparency != nil && (*d.Transparency < 0 || *d.Transparency > 100) {
				return errors.New(errors.ErrCodeInvalidConfig,
					"geometry.rules[%d].directives[%d].transparency must be between 0 and 100", i, j)
			}
		}
	}

	switch c.Cache.Backend {
	case "file", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required when cache.backend is redis")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be one of: file, redis, none")
	}

	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server.addr is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return errors.New(errors.ErrCodeInvalidConfig, "logging.level must be one of: debug, info, warn, error")
	}
	return nil
}

// MaxDirectiveDepth is the deepest level below a matched node a directive may address.
const MaxDirectiveDepth = 4

// Write encodes cfg as TOML to path, creating parent directories.
// An existing file is only replaced when overwrite is set.
func Write(cfg *Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrCodeInvalidInput, "%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// ExtractPath derives the extract file path for a geometry file: the
// extension is replaced by the configured suffix.
func (c *Config) ExtractPath(geometryPath string) string {
	return strings.TrimSuffix(geometryPath, filepath.Ext(geometryPath)) + c.Geometry.ExtractSuffix
}
