package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	s.echo.GET("/ws", s.handleWebSocket,
		newRateLimiter(s.config.WSConnectionsPerSecond, s.config.WSConnectionBurst, s.wsMetrics))
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
