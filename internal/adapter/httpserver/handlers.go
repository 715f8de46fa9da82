package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunningChecker reports whether the job processor's poll loop is alive.
type RunningChecker interface {
	Running() bool
}

// Server exposes the C12 health surface: /health, /ready, /status, /metrics.
// It has no knowledge of jobs, templates, or providers -- only enough state
// to answer "is this process alive and able to reach its control store".
type Server struct {
	DB        Pinger
	Processor RunningChecker
	StartedAt time.Time
	Version   string
}

// NewServer constructs a Server wired to the central pool and the processor's
// running flag.
func NewServer(db Pinger, processor RunningChecker, version string) *Server {
	return &Server{DB: db, Processor: processor, StartedAt: time.Now(), Version: version}
}

// HealthHandler always returns 200 once the process has started; it reports
// liveness only, not readiness to do work.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	}
}

// ReadyHandler returns 200 only if both the central store is reachable and the
// processor loop is running; otherwise 503.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if s.DB != nil {
			if err := s.DB.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "db_unreachable"})
				return
			}
		}
		if s.Processor != nil && !s.Processor.Running() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "processor_stopped"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

// StatusHandler returns a structured snapshot of process state for operators.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processorRunning := false
		if s.Processor != nil {
			processorRunning = s.Processor.Running()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":           s.Version,
			"uptime_seconds":    int(time.Since(s.StartedAt).Seconds()),
			"processor_running": processorRunning,
		})
	}
}

// MetricsHandler serves Prometheus text-format metrics.
func (s *Server) MetricsHandler() http.HandlerFunc {
	h := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}
