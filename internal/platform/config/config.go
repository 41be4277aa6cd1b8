package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	YouTubeAPIKeys           string        `env:"YOUTUBE_API_KEYS"`
	YouTubeEndpoint          string        `env:"YOUTUBE_ENDPOINT"`
	YouTubeRequestsPerSecond float64       `env:"YOUTUBE_REQUESTS_PER_SECOND" default:"5"`
	YouTubeBurst             int           `env:"YOUTUBE_BURST" default:"10"`
	YouTubeRequestTimeout    time.Duration `env:"YOUTUBE_REQUEST_TIMEOUT" default:"10s"`

	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" default:"15s"`

	PollInterval        time.Duration `env:"POLL_INTERVAL" default:"20s"`
	HeartbeatInterval   time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	ClientIdleTimeout   time.Duration `env:"CLIENT_IDLE_TIMEOUT" default:"90s"`
	WorkerMaxRestarts   int           `env:"WORKER_MAX_RESTARTS" default:"100"`
	WorkerRestartWindow time.Duration `env:"WORKER_RESTART_WINDOW" default:"10m"`

	PositiveWordsFile string `env:"POSITIVE_WORDS_FILE"`
	NegativeWordsFile string `env:"NEGATIVE_WORDS_FILE"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	WSConnectionsPerSecond  float64 `env:"WS_CONNECTIONS_PER_SECOND" default:"10"`
	WSConnectionBurst       int     `env:"WS_CONNECTION_BURST" default:"20"`
	AllowedOrigins          string  `env:"ALLOWED_ORIGINS"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// APIKeys returns the configured YouTube keys with blanks removed.
func (c *Config) APIKeys() []string {
	var keys []string
	for k := range strings.SplitSeq(c.YouTubeAPIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Origins returns the extra browser origins allowed to open a session.
func (c *Config) Origins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	if len(cfg.APIKeys()) == 0 {
		return errors.New("YOUTUBE_API_KEYS is required")
	}

	if cfg.YouTubeEndpoint != "" {
		if u, err := url.Parse(cfg.YouTubeEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("YOUTUBE_ENDPOINT must be an absolute URL, got %q", cfg.YouTubeEndpoint)
		}
	}

	positive := map[string]time.Duration{
		"POLL_INTERVAL":         cfg.PollInterval,
		"HEARTBEAT_INTERVAL":    cfg.HeartbeatInterval,
		"CLIENT_IDLE_TIMEOUT":   cfg.ClientIdleTimeout,
		"WORKER_RESTART_WINDOW": cfg.WorkerRestartWindow,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if cfg.ClientIdleTimeout <= cfg.HeartbeatInterval {
		return fmt.Errorf("CLIENT_IDLE_TIMEOUT (%s) must exceed HEARTBEAT_INTERVAL (%s)", cfg.ClientIdleTimeout, cfg.HeartbeatInterval)
	}

	if cfg.WorkerMaxRestarts < 0 {
		return errors.New("WORKER_MAX_RESTARTS must not be negative")
	}
	if cfg.YouTubeRequestsPerSecond <= 0 || cfg.YouTubeBurst < 1 {
		return errors.New("YOUTUBE_REQUESTS_PER_SECOND must be positive and YOUTUBE_BURST at least 1")
	}
	if cfg.YouTubeRequestTimeout <= 0 {
		return errors.New("YOUTUBE_REQUEST_TIMEOUT must be positive")
	}
	if cfg.WSConnectionsPerSecond <= 0 || cfg.WSConnectionBurst < 1 {
		return errors.New("WS_CONNECTIONS_PER_SECOND must be positive and WS_CONNECTION_BURST at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.RedisURL != "" && cfg.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive when REDIS_URL is set")
	}

	return nil
}
