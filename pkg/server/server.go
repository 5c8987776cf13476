// Package server exposes a running viewer over HTTP: JSON endpoints for the
// event summary and navigation, rendered views, and a websocket that tells
// browsers to redraw after every change.
//
//	GET  /api/summary
//	GET  /api/events
//	GET  /api/detectors
//	POST /api/events/next
//	POST /api/events/prev
//	POST /api/events/{id}
//	POST /api/reload
//	GET  /api/views/{view}.{format}
//	GET  /ws
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/observability"
	"github.com/matzehuels/evdisplay/pkg/render"
	"github.com/matzehuels/evdisplay/pkg/viewer"
)

//go:embed index.html
var indexHTML []byte

const shutdownTimeout = 5 * time.Second

// Server serves one orchestrator.
type Server struct {
	orch       *viewer.Orchestrator
	dispatcher *viewer.Dispatcher
	hub        *Hub
	logger     *log.Logger
	router     chi.Router
	unsub      func()
}

// New creates a server for o. Actions are dispatched through d, which
// must have o bound.
func New(o *viewer.Orchestrator, d *viewer.Dispatcher, logger *log.Logger) *Server {
	s := &Server{
		orch:       o,
		dispatcher: d,
		hub:        NewHub(logger),
		logger:     logger,
	}
	s.unsub = o.Subscribe(func(u viewer.Update) { s.hub.Broadcast(u) })
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestHooks)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/events", s.handleEvents)
		r.Get("/detectors", s.handleDetectors)
		r.Post("/events/next", s.handleAction(viewer.ActionNext))
		r.Post("/events/prev", s.handleAction(viewer.ActionPrevious))
		r.Post("/events/{id}", s.handleSelect)
		r.Post("/reload", s.handleAction(viewer.ActionReload))
		r.Get("/views/{view}.{format}", s.handleView)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("serving viewer", "addr", "http://"+addr)

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	s.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches from the orchestrator and drops websocket clients.
func (s *Server) Close() {
	s.unsub()
	s.hub.Close()
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum := s.orch.Summary()
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": sum,
		"text":    sum.String(),
		"version": s.orch.Snapshot().Version,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.orch.Events()})
}

func (s *Server) handleDetectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"detectors": s.orch.Detectors()})
}

func (s *Server) handleAction(a viewer.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, a, "")
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, viewer.ActionSelect, chi.URLParam(r, "id"))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a viewer.Action, arg string) {
	changed, err := s.dispatcher.Dispatch(r.Context(), a, arg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"summary": s.orch.Summary(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, format := chi.URLParam(r, "view"), chi.URLParam(r, "format")
	data, err := render.Render(r.Context(), s.orch.Snapshot(), view, format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func contentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/json"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.HTTPStatus(err), map[string]string{
		"code":    string(code),
		"message": errors.UserMessage(err),
	})
}

// requestHooks reports every request to the HTTP observability hooks.
func requestHooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().OnRequest(r.Context(), r.Method, path, status, time.Since(start))
	})
}
