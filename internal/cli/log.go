package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Loaded geometry (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// =============================================================================
// Log-backed observability hooks
// =============================================================================

type logViewerHooks struct{ l *log.Logger }

func (h *logViewerHooks) OnGeometryLoadStart(_ context.Context, path string) {
	h.l.Debug("geometry load", "path", path)
}

func (h *logViewerHooks) OnGeometryLoadComplete(_ context.Context, path string, nodes int, d time.Duration, err error) {
	h.l.Debug("geometry loaded", "path", path, "nodes", nodes, "elapsed", d, "error", err)
}

func (h *logViewerHooks) OnExtractComplete(_ context.Context, path string, cached bool, d time.Duration, err error) {
	h.l.Debug("extract", "path", path, "cached", cached, "elapsed", d, "error", err)
}

func (h *logViewerHooks) OnIndexComplete(_ context.Context, source string, events int, d time.Duration, err error) {
	h.l.Debug("event index", "source", source, "events", events, "elapsed", d, "error", err)
}

func (h *logViewerHooks) OnEventLoaded(_ context.Context, id int64, accepted int, d time.Duration) {
	h.l.Debug("event loaded", "event", id, "tracks", accepted, "elapsed", d)
}

func (h *logViewerHooks) OnProjection(_ context.Context, view string, elements int, d time.Duration) {
	h.l.Debug("projection", "view", view, "elements", elements, "elapsed", d)
}

type logCacheHooks struct{ l *log.Logger }

func (h *logCacheHooks) OnCacheHit(_ context.Context, keyType string) {
	h.l.Debug("cache hit", "type", keyType)
}

func (h *logCacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.l.Debug("cache miss", "type", keyType)
}

func (h *logCacheHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.l.Debug("cache set", "type", keyType, "bytes", size)
}

type logHTTPHooks struct{ l *log.Logger }

func (h *logHTTPHooks) OnRequest(_ context.Context, method, path string, status int, d time.Duration) {
	h.l.Debug("request", "method", method, "path", path, "status", status, "elapsed", d)
}

func (h *logHTTPHooks) OnClientConnected(_ context.Context, clients int) {
	h.l.Debug("websocket client connected", "clients", clients)
}

func (h *logHTTPHooks) OnClientDisconnected(_ context.Context, clients int) {
	h.l.Debug("websocket client disconnected", "clients", clients)
}
