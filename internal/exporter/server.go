package exporter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker verifies the appliance is reachable for the /ready endpoint.
type Checker func(ctx context.Context) error

// Server exposes /metrics, /health, and /ready.
type Server struct {
	addr    string
	logger  *slog.Logger
	checker Checker
	server  *http.Server
}

// readyResponse is the /ready body.
type readyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewServer assembles the exporter HTTP server. The collector is
// registered on a fresh registry along with the standard process and Go
// runtime collectors.
func NewServer(addr string, collector prometheus.Collector, checker Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		addr:    addr,
		logger:  logger,
		checker: checker,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(readyResponse{Status: "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := s.checker(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(readyResponse{Status: "not_ready", Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(readyResponse{Status: "ready"})
}

// Start serves in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("exporter listening", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("exporter server error", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
