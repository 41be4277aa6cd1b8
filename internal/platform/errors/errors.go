// Package errors provides structured errors with an HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error, used for status mapping and logging.
type ErrorType string

const (
	// TypeValidation indicates invalid input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates a missing resource (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeRateLimited indicates the caller is being throttled (HTTP 429)
	TypeRateLimited ErrorType = "rate_limited"
	// TypeUnavailable indicates the server is at capacity (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
	// TypeExternal indicates the content source failed (HTTP 502)
	TypeExternal ErrorType = "external"
	// TypeInternal indicates a server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error is a structured error carrying a type, a client-safe message and an optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func RateLimitedError(message string) *Error { return newError(TypeRateLimited, message, nil) }

func UnavailableError(message string) *Error { return newError(TypeUnavailable, message, nil) }

// ExternalError wraps a failure of the upstream content source.
func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithField adds a context field (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to HTTP clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError converts any error into an *Error.
// Errors that are not already structured become internal errors.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}

// IsType reports whether err is a structured error of the given type.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type == t
	}
	return false
}
