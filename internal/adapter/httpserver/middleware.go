package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tubepulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders handler errors as ErrorResponse JSON.
// echo.HTTPError values pass through to echo's own handler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
		"remote_ip", c.RealIP(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeRateLimited, apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeInternal, apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Request failed", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}
