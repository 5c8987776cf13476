// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; the hooks default to
// no-ops so that nothing is imported or recorded unless main registers an
// implementation.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetViewerHooks(&myViewerHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Viewer().OnGeometryLoadStart(ctx, path)
//	// ... load ...
//	observability.Viewer().OnGeometryLoadComplete(ctx, path, nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Viewer Hooks
// =============================================================================

// ViewerHooks receives events from the display core.
type ViewerHooks interface {
	// Geometry events
	OnGeometryLoadStart(ctx context.Context, path string)
	OnGeometryLoadComplete(ctx context.Context, path string, nodeCount int, duration time.Duration, err error)
	OnExtractComplete(ctx context.Context, path string, cached bool, duration time.Duration, err error)

	// Event data events
	OnIndexComplete(ctx context.Context, source string, events int, duration time.Duration, err error)
	OnEventLoaded(ctx context.Context, eventID int64, accepted int, duration time.Duration)

	// OnProjection records a projection pass over one view.
	OnProjection(ctx context.Context, view string, elements int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP viewer.
type HTTPHooks interface {
	// OnRequest records a served HTTP request.
	OnRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)

	// OnClientConnected and OnClientDisconnected track websocket clients.
	OnClientConnected(ctx context.Context, clients int)
	OnClientDisconnected(ctx context.Context, clients int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopViewerHooks is a no-op implementation of ViewerHooks.
type NoopViewerHooks struct{}

func (NoopViewerHooks) OnGeometryLoadStart(context.Context, string) {}
func (NoopViewerHooks) OnGeometryLoadComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopViewerHooks) OnExtractComplete(context.Context, string, bool, time.Duration, error) {}
func (NoopViewerHooks) OnIndexComplete(context.Context, string, int, time.Duration, error)    {}
func (NoopViewerHooks) OnEventLoaded(context.Context, int64, int, time.Duration)              {}
func (NoopViewerHooks) OnProjection(context.Context, string, int, time.Duration)              {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnClientConnected(context.Context, int)                       {}
func (NoopHTTPHooks) OnClientDisconnected(context.Context, int)                    {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	viewerHooks ViewerHooks = NoopViewerHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetViewerHooks registers custom viewer hooks.
// This should be called once at application startup.
func SetViewerHooks(h ViewerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		viewerHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Viewer returns the registered viewer hooks.
func Viewer() ViewerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return viewerHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	viewerHooks = NoopViewerHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
