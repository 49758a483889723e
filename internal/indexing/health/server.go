package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/ledgersync/internal/indexing/poller"
)

// PollerControl starts and stops ingestion.
type PollerControl interface {
	Start() poller.Status
	Stop() poller.Status
	Status() poller.Status
}

// Server provides HTTP endpoints for health monitoring and poller control.
type Server struct {
	monitor *Monitor
	poller  PollerControl
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, control PollerControl, port int) *Server {
	s := &Server{
		monitor: monitor,
		poller:  control,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the server routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("POST /poller/start", s.handlePollerStart)
	mux.HandleFunc("POST /poller/stop", s.handlePollerStop)
	mux.HandleFunc("GET /poller/status", s.handlePollerStatus)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
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
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handlePollerStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Start())
}

func (s *Server) handlePollerStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Stop())
}

func (s *Server) handlePollerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
