// Package youtube implements domain.ContentSource on the YouTube Data API v3.
//
// Calls are paced by a token bucket, guarded by a circuit breaker and spread
// over a KeyRing: a failing key is rotated out and the call retried with the
// next one, at most once per key.
package youtube
