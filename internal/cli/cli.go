// Package cli implements the evdisplay command-line interface.
//
// # Commands
//
//   - view: Interactive terminal event display (the default command)
//   - serve: HTTP viewer with live redraw
//   - snapshot: Save the 3D, Z-X and Z-Y displays of one event
//   - events: List the events of a data file with accepted track counts
//   - geometry: Inspect the detector hierarchy and its display extract
//   - cache, config, completion: Housekeeping
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// passed explicitly to the libraries; observability hooks log at debug level.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/buildinfo"
	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/config"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/observability"
	"github.com/matzehuels/evdisplay/pkg/state"
	"github.com/matzehuels/evdisplay/pkg/viewer"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "evdisplay"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	logOut     io.Writer
	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), logOut: w}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// Without a subcommand the root behaves like "view".
func (c *CLI) RootCommand() *cobra.Command {
	view := c.viewCommand()

	root := &cobra.Command{
		Use:   "evdisplay [geometry] [data]",
		Short: "evdisplay shows simulated particle tracks inside a detector geometry",
		Long: `evdisplay loads a GDML detector description and a table of simulated
trajectories, and displays one event at a time in a 3D view and in the
Z-X and Z-Y projections.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		Args:              view.Args,
		ValidArgsFunction: view.ValidArgsFunction,
		RunE:              view.RunE,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.Flags().AddFlagSet(view.Flags())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "config file (default: user config dir)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(view)
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.eventsCommand())
	root.AddCommand(c.geometryCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration and applies the log level.
// --verbose wins over logging.level.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid logging.level %q", cfg.Logging.Level)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)
	registerHooks(c.Logger)
	return nil
}

// config returns the loaded configuration, or the defaults when a command
// runs without the root's pre-run (tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Factories
// =============================================================================

// openCache opens the configured cache backend. Redis connection failures
// fall back to no caching with a warning.
func (c *CLI) openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, cache.Keyer, error) {
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Prefix)
	switch cfg.Backend {
	case "none":
		return cache.Disabled(), keyer, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			c.Logger.Warn("redis cache unavailable, caching disabled", "error", err)
			return cache.Disabled(), keyer, nil
		}
		return rc, keyer, nil
	default:
		dir := cfg.Dir
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return cache.Disabled(), keyer, nil
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, nil, err
		}
		return fc, keyer, nil
	}
}

// newOrchestrator creates an orchestrator wired to the configured cache and,
// when resume is enabled, to the position store.
func (c *CLI) newOrchestrator(ctx context.Context, cfg *config.Config) (*viewer.Orchestrator, func(), error) {
	ch, keyer, err := c.openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	opts := viewer.Options{
		Config: cfg,
		Logger: c.Logger,
		Cache:  ch,
		Keyer:  keyer,
	}
	if cfg.State.Resume {
		store, err := state.NewFileStore(cfg.State.Path)
		if err != nil {
			c.Logger.Warn("resume disabled", "error", err)
		} else {
			opts.Positions = store
			if n, err := store.Cleanup(ctx); err == nil && n > 0 {
				c.Logger.Debug("removed expired positions", "count", n)
			}
		}
	}
	o := viewer.New(opts)
	cleanup := func() {
		if err := o.Close(); err != nil {
			c.Logger.Warn("closing viewer", "error", err)
		}
		ch.Close()
	}
	return o, cleanup, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/evdisplay/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Hooks
// =============================================================================

func registerHooks(l *log.Logger) {
	observability.SetViewerHooks(&logViewerHooks{l})
	observability.SetCacheHooks(&logCacheHooks{l})
	observability.SetHTTPHooks(&logHTTPHooks{l})
}
