package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the session upgrader.
// It allows empty origins (non-browser clients), the server's own host and
// every origin in allowed. When isDevelopment is true, localhost origins are
// additionally allowed.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if o := extractOrigin(a); o != "" {
			origins[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if _, ok := origins[origin]; ok {
			return true
		}

		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
