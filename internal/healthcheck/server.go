package healthcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
	"go.uber.org/zap"
)

// ReadinessProbe checks a single dependency. A nil error means ready.
type ReadinessProbe func(ctx context.Context) error

// Server represents a health check HTTP server
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux // Expose mux for adding handlers
	logger     *zap.Logger

	mu     sync.RWMutex
	probes map[string]ReadinessProbe
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// NewServer creates a new health check server
func NewServer(port string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		mux:    mux,
		logger: logger,
		probes: make(map[string]ReadinessProbe),
	}

	// Register default health check endpoints
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)

	return server
}

// RegisterReadinessProbe adds a named dependency check to the /ready endpoint.
func (s *Server) RegisterReadinessProbe(name string, probe ReadinessProbe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = probe
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("/metrics", handler)
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting health check server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "UP",
		Version: "1.0.0",
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

// handleReady handles the /ready endpoint for readiness probes.
// Every registered dependency probe must pass for a 200 response.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	s.mu.RLock()
	probes := make(map[string]ReadinessProbe, len(s.probes))
	for name, probe := range s.probes {
		probes[name] = probe
	}
	s.mu.RUnlock()

	details := map[string]string{
		"timestamp": utils.FormatISO8601(utils.Now()),
	}

	ready := true
	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			s.logger.Warn("Readiness probe failed", zap.String("probe", name), zap.Error(err))
			details[name] = err.Error()
			ready = false
		} else {
			details[name] = "ok"
		}
	}

	if !ready {
		utils.WriteJSONResponse(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "NOT_READY",
			Details: details,
		})
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{
		Status:  "READY",
		Details: details,
	})
}
