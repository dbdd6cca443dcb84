package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/console"
	consolehandler "github.com/labverse/sentinel-core/pkg/handlers/console"
	"github.com/labverse/sentinel-core/pkg/handlers/health"
	scheduleshandler "github.com/labverse/sentinel-core/pkg/handlers/schedules"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/middleware"
	"github.com/labverse/sentinel-core/pkg/schedules"
)

// Dependencies are the components the API exposes
type Dependencies struct {
	Session *console.Session
	Store   *schedules.Store
	// BackendFailed reports whether the backend circuit breaker is open
	BackendFailed func() bool
}

// Server represents the API server
type Server struct {
	router   *http.ServeMux
	http     *http.Server
	addr     string
	logger   *logger.Logger
	handlers struct {
		health    *health.Handler
		console   *consolehandler.Handler
		schedules *scheduleshandler.Handler
	}
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) *Server {
	server := &Server{
		router: http.NewServeMux(),
		addr:   net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		logger: log,
	}

	server.handlers.health = health.NewHandler(health.Probes{
		SessionOpen:   deps.Session.IsOpen,
		BackendFailed: deps.BackendFailed,
	}, log)
	server.handlers.console = consolehandler.NewHandler(deps.Session, log)
	server.handlers.schedules = scheduleshandler.NewHandler(deps.Store, log)

	server.setupRoutes()

	server.http = &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	route := func(pattern string, h http.HandlerFunc) {
		s.router.HandleFunc(pattern, middleware.CORS(h))
	}

	// Preflight for every path
	route("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {})

	route("GET /health", s.handlers.health.HealthCheck)

	// Session endpoints
	route("POST /api/session", s.handlers.console.OpenSession)
	route("DELETE /api/session", s.handlers.console.CloseSession)
	route("GET /api/status", s.handlers.console.Status)

	// Download method endpoints
	route("GET /api/methods", s.handlers.console.ListMethods)
	route("POST /api/methods/stop-all", s.handlers.console.StopAll)
	route("POST /api/methods/{id}/start", s.handlers.console.StartMethod)
	route("POST /api/methods/{id}/stop", s.handlers.console.StopMethod)

	// Schedule endpoints
	route("GET /api/schedules", s.handlers.schedules.List)
	route("POST /api/schedules", s.handlers.schedules.Create)
	route("GET /api/schedules/{id}", s.handlers.schedules.Get)
	route("PUT /api/schedules/{id}", s.handlers.schedules.Update)
	route("DELETE /api/schedules/{id}", s.handlers.schedules.Delete)
	route("GET /api/schedules/{id}/next-run", s.handlers.schedules.NextRun)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("addr", s.addr).
		Msg("Starting API server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on %s: %w", s.addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().
		Str("action", "server_shutdown").
		Msg("Shutting down API server")
	return s.http.Shutdown(ctx)
}
