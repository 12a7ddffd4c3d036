package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/rpihome-core/internal/climate"
	"github.com/nerrad567/rpihome-core/internal/dispatch"
	"github.com/nerrad567/rpihome-core/internal/events"
	"github.com/nerrad567/rpihome-core/internal/hardware"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
	"github.com/nerrad567/rpihome-core/internal/journal"
	"github.com/nerrad567/rpihome-core/internal/switches"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds what the server needs. Events and Journal are optional.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Devices  *hardware.Devices
	Switches *switches.Table
	Climate  *climate.Climate
	Events   *events.Bus
	Journal  journal.Repository
	Version  string
}

// Server is the rpihome HTTP server.
//
// New registers every method; Start binds the listener. Handler can be
// used without Start, which is how the tests drive it.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	devices  *hardware.Devices
	switches *switches.Table
	climate  *climate.Climate
	events   *events.Bus
	journal  journal.Repository
	version  string

	registry *dispatch.Registry
	metrics  *metrics
	handler  http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New validates deps, registers the methods and builds the router.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Devices == nil:
		return nil, fmt.Errorf("hardware devices are required")
	case deps.Switches == nil:
		return nil, fmt.Errorf("switch table is required")
	case deps.Climate == nil:
		return nil, fmt.Errorf("climate state is required")
	}

	s := &Server{
		cfg:      deps.Config,
		logger:   deps.Logger.With("component", "api"),
		devices:  deps.Devices,
		switches: deps.Switches,
		climate:  deps.Climate,
		events:   deps.Events,
		journal:  deps.Journal,
		version:  deps.Version,
	}

	s.registry = dispatch.NewRegistry(s.cfg.Server.MaxBodyBytes)
	s.registry.SetLogger(s.logger)
	if s.cfg.Metrics.Enabled {
		s.metrics = newMetrics(s.version)
		s.registry.SetObserver(s.metrics)
	}
	s.registerMethods()
	s.handler = s.buildRouter()

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Methods returns the registered method names.
func (s *Server) Methods() []string {
	return s.registry.Names()
}

// Start binds the configured address and serves in the background.
// A bind failure is returned directly.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.cfg.Server.Address, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("api server listening", "address", ln.Addr().String(), "methods", len(s.registry.Names()))

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close waits up to gracefulShutdownTimeout for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
