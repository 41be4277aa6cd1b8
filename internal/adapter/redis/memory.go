package redis

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// memoryCache is the in-process layer in front of Redis, holding encoded
// responses with a TTL.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type memoryCacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *memoryCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *memoryCache) set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryCacheEntry{data: data, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// startEviction sweeps expired entries every interval until the returned
// stop function is called.
func (c *memoryCache) startEviction(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired cache entries", "count", evicted, "remaining", c.size())
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
