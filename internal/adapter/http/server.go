package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-cache-service/internal/alerts"
	"github.com/couchcryptid/weather-cache-service/internal/analytics"
	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/health"
	"github.com/couchcryptid/weather-cache-service/internal/weather"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP API serves.
type Deps struct {
	Weather   *weather.Service
	Alerts    *alerts.Engine
	Analytics *analytics.Tracker
	Health    *health.Probe
	Cache     *cache.Gateway
	Ready     sharedobs.ReadinessChecker
	Clock     clockwork.Clock
}

// Server exposes the weather, alert, and analytics API alongside the
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server listening on addr.
func NewServer(addr string, d Deps, logger *slog.Logger) *Server {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   d,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(d.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.weatherRoutes(api)
	s.alertRoutes(api)
	s.analyticsRoutes(api)
	mux.Handle("/api/v1/", s.track(api))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type healthResponse struct {
	health.Report
	CacheKeys map[string]int `json:"cache_keys"`
}

// handleHealth reports the store probe and the number of keys per top-level
// namespace. It answers 503 when the probe fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.CheckHealth(r.Context())
	resp := healthResponse{Report: report, CacheKeys: make(map[string]int, len(cache.Namespaces))}
	if report.Up() {
		for _, ns := range cache.Namespaces {
			n, err := s.deps.Cache.CountKeys(r.Context(), ns+":*")
			if err != nil {
				continue
			}
			resp.CacheKeys[ns] = n
		}
	}

	status := http.StatusOK
	if !report.Up() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
