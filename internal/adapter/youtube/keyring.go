package youtube

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

var ErrNoKeys = errors.New("youtube: at least one API key is required")

// KeyRing holds one API service per key and remembers which key to try first.
type KeyRing struct {
	mu       sync.Mutex
	services []*yt.Service
	current  int
}

// NewKeyRing builds a service per key. Extra options (endpoint override) are
// applied to every service.
func NewKeyRing(ctx context.Context, keys []string, opts ...option.ClientOption) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	services := make([]*yt.Service, 0, len(keys))
	for i, key := range keys {
		svc, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(key)}, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("youtube: create service for key #%d: %w", i, err)
		}
		services = append(services, svc)
	}
	return &KeyRing{services: services}, nil
}

func (r *KeyRing) Len() int {
	return len(r.services)
}

// Current returns the index of the key that is tried first.
func (r *KeyRing) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *KeyRing) at(i int) *yt.Service {
	return r.services[i%len(r.services)]
}

// advance moves past failed unless another caller already did.
func (r *KeyRing) advance(failed int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.services) == 1 || r.current != failed%len(r.services) {
		return false
	}
	r.current = (r.current + 1) % len(r.services)
	return true
}
