// Package httpapi serves the operational endpoints: health, readiness and
// Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Stewart86/bobby/internal/observability"
)

type Server struct {
	startedAt time.Time
	ready     func() bool
}

// New builds the ops server. ready reports whether the gateway connection is
// up; nil means always ready.
func New(ready func() bool) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{startedAt: time.Now().UTC(), ready: ready}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "connecting"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
