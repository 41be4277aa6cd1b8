package domain

import "errors"

var (
	ErrFetchFailed   = errors.New("content fetch failed")
	ErrMalformedItem = errors.New("malformed item")
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrEmptyQuery    = errors.New("query must not be empty")
	ErrWorkerPanic   = errors.New("worker panicked")
)
