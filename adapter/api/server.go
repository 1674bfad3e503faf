// Package api serves the route operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	server  *http.Server
	logger  *slog.Logger
	handler *RouteHandler
	health  *observability.HealthRegistry
	metrics observability.Metrics
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// Metrics receives per-route request counts and latencies. When it can
	// snapshot itself it is also served on /metricz.
	Metrics observability.Metrics
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "0.0.0.0:8080",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, handler *RouteHandler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry(0)
	}

	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		handler: handler,
		health:  health,
		metrics: cfg.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observability.NoopMetrics{}
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerOperator, headerIfMatch, headerCorrelation},
		ExposedHeaders: []string{"ETag", headerCorrelation},
		MaxAge:         300,
	}))
	s.router.Use(s.requestContext)

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.router.Method(http.MethodGet, "/healthz", observability.LivenessHandler())
	s.router.Method(http.MethodGet, "/readyz", s.health.ReadinessHandler())
	if snap, ok := s.metrics.(interface{ Snapshot() observability.Snapshot }); ok {
		s.router.Get("/metricz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, snap.Snapshot())
		})
	}

	s.router.Route("/routes", func(r chi.Router) {
		r.Get("/", s.handler.ListRoutes)
		r.Post("/", s.handler.CreateRoute)
		r.Route("/{routeID}", func(r chi.Router) {
			r.Get("/", s.handler.GetRoute)
			r.Delete("/", s.handler.DeleteRoute)
			r.Put("/stops/order", s.handler.ReorderStops)
			r.Post("/status", s.handler.ChangeStatus)
			r.Put("/driver", s.handler.ReassignDriver)
			r.Put("/vehicle", s.handler.ReassignVehicle)
			r.Post("/series", s.handler.CreateSeries)
			r.Get("/delays", s.handler.GetDelays)
			r.Get("/flags", s.handler.ListFlags)
			r.Delete("/flags/{flagID}", s.handler.ClearFlag)
		})
	})
	s.router.Post("/stops/{stopID}/outcome", s.handler.RecordOutcome)
	s.router.Post("/stops/{stopID}/cancel", s.handler.CancelStop)
	s.router.Post("/absences/{absenceID}/cancellation", s.handler.AbsenceCancelled)
}

// requestContext carries the correlation and operator IDs into the handler
// context so log lines pick them up, and logs one line per request.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := observability.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = observability.WithCorrelationID(ctx, r.Header.Get(headerCorrelation))
		if op := r.Header.Get(headerOperator); op != "" {
			ctx = observability.WithOperatorID(ctx, op)
		}
		w.Header().Set(headerCorrelation, observability.CorrelationIDFromContext(ctx))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		elapsed := time.Since(start)

		pattern := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		tags := []observability.Tag{
			observability.T("method", r.Method),
			observability.T("route", pattern),
			observability.T("status", fmt.Sprintf("%dxx", ww.Status()/100)),
		}
		s.metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
		s.metrics.Timing(observability.MetricHTTPDuration, elapsed, tags...)

		s.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			observability.StatusKey, ww.Status(),
			observability.DurationKey, elapsed.Milliseconds(),
		)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}
