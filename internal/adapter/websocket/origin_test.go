package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://tubepulse.example.com/app"}

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"allowed origin", "https://tubepulse.example.com", false, true},
		{"same host as request", "http://api.internal:8080", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://tubepulse.example.com:9090", false, false},
		{"http instead of https", "http://tubepulse.example.com", false, false},
		{"subdomain", "https://sub.tubepulse.example.com", false, false},

		{"localhost dev", "http://localhost:3000", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:3000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(allowed, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://api.internal:8080/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/app", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
