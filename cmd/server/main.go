package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tubepulse/internal/adapter/httpserver"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/adapter/redis"
	"github.com/pscheid92/tubepulse/internal/adapter/websocket"
	"github.com/pscheid92/tubepulse/internal/adapter/youtube"
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/platform/config"
	"github.com/pscheid92/tubepulse/internal/platform/logging"
	"github.com/pscheid92/tubepulse/internal/platform/version"
	"github.com/pscheid92/tubepulse/internal/sentiment"
	"github.com/pscheid92/tubepulse/internal/session"
)

const (
	shutdownTimeout       = 10 * time.Second
	cacheEvictionInterval = time.Minute
)

var errSourceBreakerOpen = errors.New("content source circuit breaker open")

type contentStack struct {
	source domain.ContentSource
	checks []httpserver.HealthCheck
	close  func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupScorer(cfg *config.Config) sentiment.Scorer {
	lexicon, err := sentiment.LoadLexicon(cfg.PositiveWordsFile, cfg.NegativeWordsFile)
	if err != nil {
		slog.Error("Failed to load sentiment lexicon", "error", err)
		os.Exit(1)
	}
	positive, negative := lexicon.Size()
	slog.Info("Sentiment lexicon loaded", "positive", positive, "negative", negative)
	return sentiment.NewAnalyzer(lexicon)
}

// setupContentSource builds the YouTube client and, when REDIS_URL is set,
// puts the shared cache in front of it.
func setupContentSource(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) contentStack {
	yt, err := youtube.NewClient(ctx, youtube.Config{
		Keys:              cfg.APIKeys(),
		Endpoint:          cfg.YouTubeEndpoint,
		RequestsPerSecond: cfg.YouTubeRequestsPerSecond,
		Burst:             cfg.YouTubeBurst,
		RequestTimeout:    cfg.YouTubeRequestTimeout,
	}, metrics.NewSourceMetrics(reg), clock)
	if err != nil {
		slog.Error("Failed to create YouTube client", "error", err)
		os.Exit(1)
	}

	stack := contentStack{
		source: yt,
		close:  func() {},
		checks: []httpserver.HealthCheck{{
			Name: "youtube",
			Check: func(context.Context) error {
				if yt.BreakerState() == circuitbreaker.OpenState {
					return errSourceBreakerOpen
				}
				return nil
			},
		}},
	}

	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, running without shared cache")
		return stack
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	cache := redis.NewCachedSource(yt, rdb.Underlying(), cfg.CacheTTL, clock, metrics.NewCacheMetrics(reg))
	stopEviction := cache.StartEvictionTimer(cacheEvictionInterval)

	stack.source = cache
	stack.checks = append(stack.checks, httpserver.HealthCheck{Name: "redis", Check: rdb.Ping})
	stack.close = func() {
		stopEviction()
		if err := rdb.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
	slog.Info("Shared cache enabled", "ttl", cfg.CacheTTL)
	return stack
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.PollInterval = cfg.PollInterval
	sc.HeartbeatInterval = cfg.HeartbeatInterval
	sc.MaxRestarts = cfg.WorkerMaxRestarts
	sc.RestartWindow = cfg.WorkerRestartWindow
	return sc
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	reg := metrics.NewRegistry()
	sessionMetrics := metrics.NewSessionMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	scorer := setupScorer(cfg)

	content := setupContentSource(context.Background(), cfg, reg, clock)
	defer content.close()

	hub := websocket.NewHub(wsMetrics)
	sc := sessionConfig(cfg)
	sessions := func(id uuid.UUID, outbox session.Outbox) *session.Coordinator {
		return session.NewCoordinator(id, sc, content.source, scorer, outbox, clock, sessionMetrics)
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Sessions:     sessions,
		Hub:          hub,
		Registry:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		WSMetrics:    wsMetrics,
		HealthChecks: content.checks,
		Clock:        clock,
	})

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		content.close()
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
