package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/audit"
	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeService is the part of the bridge the API drives.
type BridgeService interface {
	Devices() []shelly.DeviceSnapshot
	Device(id string) (shelly.DeviceSnapshot, error)
	WriteProperty(ctx context.Context, id, name string, value any) ([]shelly.Command, error)
	InvokeAction(ctx context.Context, id, name string) ([]shelly.Command, error)
	IsConnected() bool
	Stats() shelly.BridgeStatistics
}

// CommandLog lists recorded commands.
type CommandLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Bridge   BridgeService
	Commands CommandLog // optional; /commands answers 503 without it
	Hub      *Hub       // optional; created and run by Start when nil
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	bridge      BridgeService
	commands    CommandLog
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		commands: deps.Commands,
		version:  deps.Version,
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}
	return s, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
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
