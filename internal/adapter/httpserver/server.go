package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/adapter/websocket"
	"github.com/pscheid92/tubepulse/internal/platform/config"
	"github.com/pscheid92/tubepulse/internal/session"
)

// SessionFactory builds a coordinator that writes to outbox. The server
// starts and ends it.
type SessionFactory func(id uuid.UUID, outbox session.Outbox) *session.Coordinator

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Sessions     SessionFactory
	Hub          *websocket.Hub
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	WSMetrics    *metrics.WebSocketMetrics
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	sessions SessionFactory
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	slots    *connectionSlots

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	wsMetrics    *metrics.WebSocketMetrics
	healthChecks []HealthCheck
	startTime    time.Time

	// sessionCtx outlives requests; cancelled on shutdown
	sessionCtx     context.Context
	cancelSessions context.CancelFunc
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		echo:     e,
		config:   cfg,
		clock:    clock,
		sessions: deps.Sessions,
		hub:      deps.Hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     websocket.NewCheckOrigin(cfg.Origins(), cfg.IsDevelopment()),
		},
		slots:          newConnectionSlots(int64(cfg.MaxWebSocketConnections)),
		registry:       deps.Registry,
		httpMetrics:    deps.HTTPMetrics,
		wsMetrics:      deps.WSMetrics,
		healthChecks:   deps.HealthChecks,
		startTime:      clock.Now(),
		sessionCtx:     sessionCtx,
		cancelSessions: cancel,
	}

	srv.registerRoutes()
	return srv
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes every WebSocket client with a close frame, ends their
// sessions and then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop("server shutting down")
	s.cancelSessions()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
