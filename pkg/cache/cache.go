// Package cache provides the key/value caching layer used to skip repeated
// geometry simplification and event indexing.
//
// Three backends are available:
//   - FileCache: one JSON entry per key under a local directory (CLI default)
//   - RedisCache: shared cache for several viewers serving the same files
//   - Disabled: a cache that never hits, for cache.backend = "none"
//
// Keys are produced by a Keyer so that the format of cached entries can
// change without touching callers. Cached values are opaque byte slices.
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached artifacts.
const (
	// TTLExtract bounds how long a simplified geometry extract is reused.
	// The key includes a hash of the geometry file, so staleness only
	// matters for disk usage.
	TTLExtract = 7 * 24 * time.Hour

	// TTLIndex bounds how long the distinct event ids of a data file are reused.
	TTLIndex = 24 * time.Hour
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was found.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ExtractKeyOpts holds the simplification options that affect an extract.
type ExtractKeyOpts struct {
	VisLevel    int    `json:"vis_level"`
	Hall        string `json:"hall"`
	UseDefaults bool   `json:"use_defaults"`
	RulesHash   string `json:"rules_hash,omitempty"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ExtractKey identifies a display-geometry extract for a geometry file content hash.
	ExtractKey(geometryHash string, opts ExtractKeyOpts) string

	// IndexKey identifies the event index of a data source.
	// sourceID is a stable identity for the source (content hash or URI).
	IndexKey(sourceID string) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ExtractKey implements Keyer.
func (DefaultKeyer) ExtractKey(geometryHash string, opts ExtractKeyOpts) string {
	return hashKey("extract", geometryHash, opts)
}

// IndexKey implements Keyer.
func (DefaultKeyer) IndexKey(sourceID string) string {
	return hashKey("index", sourceID)
}

// Disabled returns a Cache that stores nothing and always misses.
func Disabled() Cache { return disabled{} }

type disabled struct{}

func (disabled) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, string) error                     { return nil }
func (disabled) Close() error                                             { return nil }
