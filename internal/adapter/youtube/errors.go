package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pscheid92/tubepulse/internal/domain"
	apperrors "github.com/pscheid92/tubepulse/internal/platform/errors"
	"github.com/pscheid92/tubepulse/internal/platform/retry"
	"google.golang.org/api/googleapi"
)

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || statusCode(err) == http.StatusNotFound
}

// isQuotaExceeded matches the 403 reasons the Data API uses for spent keys.
func isQuotaExceeded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if strings.Contains(item.Reason, "quota") || strings.Contains(item.Reason, "RateLimit") {
			return true
		}
	}
	return false
}

// rotatable reports whether another key might succeed where this one failed.
func rotatable(err error) bool {
	switch code := statusCode(err); {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMalformedItem) {
		return retry.Stop
	}
	if rotatable(err) {
		return retry.Retry
	}
	if statusCode(err) != 0 {
		// 400, 404 and friends fail the same way with every key
		return retry.Stop
	}
	// transport errors
	return retry.Retry
}

// sourceFailure is true for errors that say something about the API's health.
func sourceFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !isNotFound(err) && statusCode(err) != http.StatusBadRequest
}

// mapError turns a failed call into a structured error that still matches the
// domain sentinels.
func mapError(op string, err error) error {
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}

	switch {
	case isNotFound(err):
		return &apperrors.Error{
			Type:    apperrors.TypeNotFound,
			Message: op + ": resource not found",
			Cause:   fmt.Errorf("%w: %w", domain.ErrNotFound, err),
			Context: map[string]any{"operation": op},
		}
	case isQuotaExceeded(err) || statusCode(err) == http.StatusTooManyRequests:
		return apperrors.ExternalError(op+": quota exhausted on all keys",
			fmt.Errorf("%w: %w: %w", domain.ErrFetchFailed, domain.ErrQuotaExceeded, err)).
			WithField("operation", op)
	default:
		return apperrors.ExternalError(op+": content source request failed",
			fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)).
			WithField("operation", op)
	}
}
