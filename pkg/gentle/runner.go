package gentle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/geometry"
	"github.com/matzehuels/evdisplay/pkg/observability"
	"github.com/matzehuels/evdisplay/pkg/scene"
)

// Runner produces projectable display geometry with caching.
//
// The extract file is always written and read back, cache hit or not:
// Import only ever sees what Reload returned.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a disabled cache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.Disabled()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Request describes one extract generation.
type Request struct {
	Hall    string // hall placement name
	Path    string // extract file to write and reload
	Options Options
	Refresh bool // ignore cached extracts
}

// Result is the outcome of Generate.
type Result struct {
	Extract  *Extract
	Element  *scene.Element
	Shapes   int
	CacheHit bool
	Duration time.Duration
}

// Generate builds, persists and reloads the extract for the geometry
// currently loaded in h, then imports it into scene elements.
func (r *Runner) Generate(ctx context.Context, h *geometry.Hierarchy, req Request) (res *Result, err error) {
	start := time.Now()
	hit := false
	defer func() {
		observability.Viewer().OnExtractComplete(ctx, req.Path, hit, time.Since(start), err)
	}()

	if !h.Loaded() {
		return nil, errors.New(errors.ErrCodeGeometryExtract, "no geometry loaded")
	}
	if req.Options.VisLevel < 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vis level must be at least 1")
	}

	key, err := r.key(h.Path(), req)
	if err != nil {
		r.Logger.Warn("extract cache disabled for this geometry", "error", err)
	}

	var data []byte
	if key != "" && !req.Refresh {
		if cached, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			data, hit = cached, true
			observability.Cache().OnCacheHit(ctx, "extract")
		} else {
			if err != nil {
				r.Logger.Warn("extract cache read failed", "error", err)
			}
			observability.Cache().OnCacheMiss(ctx, "extract")
		}
	}

	hall := h.LocateHall(req.Hall)
	if data == nil {
		r.Logger.Info("extracting gentle geometry", "path", req.Path, "vis_level", req.Options.VisLevel)
		ex := Build(h, hall, req.Options)
		if data, err = Marshal(ex); err != nil {
			return nil, errors.Wrap(errors.ErrCodeGeometryExtract, err, "encode extract")
		}
		if key != "" {
			if err := r.Cache.Set(ctx, key, data, cache.TTLExtract); err != nil {
				r.Logger.Warn("extract cache write failed", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "extract", len(data))
			}
		}
	}

	prepareHall(hall)

	if err := writeFile(req.Path, data); err != nil {
		return nil, err
	}
	r.Logger.Info("re-importing gentle geometry", "path", req.Path, "cached", hit)
	ex, err := Reload(req.Path)
	if err != nil {
		return nil, err
	}

	return &Result{
		Extract:  ex,
		Element:  Import(ex),
		Shapes:   ex.Root.Count(),
		CacheHit: hit,
		Duration: time.Since(start),
	}, nil
}

// key derives the cache key from the geometry content and the options.
func (r *Runner) key(geometryPath string, req Request) (string, error) {
	sum, err := cache.HashFile(geometryPath)
	if err != nil {
		return "", fmt.Errorf("hash geometry: %w", err)
	}
	rules, err := json.Marshal(req.Options.Rules)
	if err != nil {
		return "", fmt.Errorf("hash rules: %w", err)
	}
	return r.Keyer.ExtractKey(sum, cache.ExtractKeyOpts{
		VisLevel:    req.Options.VisLevel,
		Hall:        req.Hall,
		UseDefaults: req.Options.UseDefaults,
		RulesHash:   cache.Hash(rules),
	}), nil
}
