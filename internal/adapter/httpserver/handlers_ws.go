package httpserver

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tubepulse/internal/adapter/websocket"
	"github.com/pscheid92/tubepulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
	"github.com/pscheid92/tubepulse/internal/session"
)

const maxMessageSize = 4096

// handleWebSocket runs one session for the lifetime of the connection.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.slots.acquire() {
		s.wsMetrics.Rejected.WithLabelValues(rejectGlobal).Inc()
		return apperrors.UnavailableError("session capacity reached").
			WithField("max_connections", s.slots.max)
	}
	defer s.slots.release()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		s.wsMetrics.Rejected.WithLabelValues("upgrade").Inc()
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	client := websocket.NewClient(conn, s.clock, s.wsMetrics)
	if err := s.hub.Register(client); err != nil {
		client.StopGraceful("server shutting down")
		return nil
	}
	defer s.hub.Unregister(client)

	coord := s.sessions(uuid.New(), client)
	coord.Start(s.sessionCtx)

	ctx := correlation.WithID(c.Request().Context(), correlation.ForSession(coord.ID()))
	slog.InfoContext(ctx, "WebSocket session opened", "remote_ip", c.RealIP())

	go s.readLoop(ctx, conn, coord)

	select {
	case <-coord.Done():
	case <-client.Closed():
		coord.Close()
		<-coord.Done()
	}
	client.Stop()

	slog.InfoContext(ctx, "WebSocket session closed")
	return nil
}

// readLoop feeds client frames to the coordinator. Any inbound message
// counts as liveness; silence past the idle timeout ends the session.
func (s *Server) readLoop(ctx context.Context, conn *gorillaws.Conn, coord *session.Coordinator) {
	defer coord.Close()
	conn.SetReadLimit(maxMessageSize)

	for {
		_ = conn.SetReadDeadline(s.clock.Now().Add(s.config.ClientIdleTimeout))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) {
				slog.DebugContext(ctx, "WebSocket read failed", "error", err)
			}
			return
		}
		if msgType != gorillaws.TextMessage {
			continue
		}
		if !coord.HandleFrame(raw) {
			return
		}
	}
}
