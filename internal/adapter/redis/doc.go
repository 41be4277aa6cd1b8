// Package redis provides the optional shared response cache.
//
// CachedSource decorates a domain.ContentSource with two layers: a short
// in-process map and Redis. Concurrent misses for the same key collapse into
// one upstream call. Redis is never on the critical path: a failed or
// breaker-rejected command is treated as a miss and the source is asked.
package redis
