package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/observon/indi-core/internal/bridge"
	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/logging"
	"github.com/observon/indi-core/internal/profile"
	"github.com/observon/indi-core/internal/supervisor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     *config.Config
	Logger     *logging.Logger
	Profiles   *profile.Repository
	Catalog    *catalog.Catalog
	Supervisor *supervisor.Supervisor
	Bridge     *bridge.Bridge
	Version    string
}

// Server is the HTTP API for INDI Control Core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// hub. Create with New(), start with Start(), stop with Close().
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	profiles   *profile.Repository
	catalog    *catalog.Catalog
	supervisor *supervisor.Supervisor
	bridge     *bridge.Bridge
	version    string

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc
}

// New creates an API server with the given dependencies.
// The server does not listen until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("driver catalog is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger.With("component", "api"),
		profiles:   deps.Profiles,
		catalog:    deps.Catalog,
		supervisor: deps.Supervisor,
		bridge:     deps.Bridge,
		version:    deps.Version,
		tickets:    newTicketStore(),
	}
	s.hub = NewHub(deps.Config.WebSocket, s.logger)

	return s, nil
}

// Hub returns the WebSocket hub so the application can wire bridge and
// supervisor events into client broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It runs the WebSocket hub and ticket cleanup in the background and
// launches the HTTP listener in its own goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
