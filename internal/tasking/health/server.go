package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/autodev/internal/tasking/progress"
)

// Status is the aggregate run verdict derived from the health score.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// StatusFor maps a health score to an aggregate status.
func StatusFor(score float64) Status {
	switch {
	case score >= 0.7:
		return StatusHealthy
	case score >= 0.4:
		return StatusDegraded
	default:
		return StatusCritical
	}
}

// Server provides HTTP endpoints for run monitoring.
type Server struct {
	tracker *progress.Tracker
	server  *http.Server
}

// NewServer creates a new status server backed by the progress tracker.
func NewServer(tracker *progress.Tracker, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		tracker: tracker,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	score := s.tracker.HealthScore()
	status := StatusFor(score)

	response := map[string]any{
		"status": string(status),
		"score":  score,
	}
	w.Header().Set("Content-Type", "application/json")

	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.tracker.Snapshot())
}
