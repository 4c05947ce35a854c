// Package app is the composition root: it wires configuration, logging,
// tracing, the upstream API client, session storage, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/credstore"
	handlerhttp "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App is the assembled storefront gateway.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server

	redis           *redis.Client
	shutdownTracing func(context.Context) error
}

// New loads configuration and wires every component. It fails fast: a
// misconfigured gateway never starts serving.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	l := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(l)

	shutdownTracing, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TracingSampleRate,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	app := &App{cfg: cfg, logger: l, shutdownTracing: shutdownTracing}

	httpClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.HTTPTimeout,
		MaxRetries:      cfg.HTTPMaxRetries,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})
	breaker := httpclient.NewBreakerClient(httpClient, httpclient.BreakerConfig{
		Name:         "e-store-api",
		MaxRequests:  1,
		Interval:     cfg.BreakerInterval,
		Timeout:      cfg.BreakerTimeout,
		FailureRatio: cfg.BreakerFailureRatio,
		MinRequests:  cfg.BreakerMinRequests,
	}, l)

	api := backend.New(cfg.APIBaseURL, breaker, l)

	factory, err := app.storeFactory(ctx)
	if err != nil {
		return nil, err
	}
	registry := session.NewRegistry(api, factory, l)

	healthHandler := health.NewHandler()
	healthHandler.Register("upstream_breaker", func(ctx context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("upstream circuit breaker is open")
		}
		return nil
	})
	if app.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
	}

	router := handlerhttp.NewRouter(handlerhttp.RouterConfig{
		ServiceName:        serviceName,
		Environment:        cfg.Environment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Session: handlerhttp.SessionConfig{
			Secure: cfg.CookieSecure,
			TTL:    cfg.SessionTTL,
		},
	}, registry, api, healthHandler, l)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return app, nil
}

// Run serves HTTP until the context is cancelled, then drains in-flight
// requests and releases resources.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("storefront gateway listening",
			slog.String("addr", a.server.Addr),
			slog.String("environment", a.cfg.Environment),
			slog.String("cred_store", a.cfg.CredStore),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close failed", slog.String("error", err.Error()))
		}
	}
	if err := a.shutdownTracing(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown failed", slog.String("error", err.Error()))
	}
	return nil
}

// storeFactory builds the per-session credential store factory for the
// configured backend.
func (a *App) storeFactory(ctx context.Context) (session.StoreFactory, error) {
	switch a.cfg.CredStore {
	case config.StoreMemory:
		// One store per session, shared across manager evictions so
		// credentials survive for the lifetime of the process.
		var mu sync.Mutex
		stores := make(map[string]*credstore.MemoryStore)
		return func(sessionID string) credstore.Store {
			mu.Lock()
			defer mu.Unlock()
			if s, ok := stores[sessionID]; ok {
				return s
			}
			s := credstore.NewMemoryStore()
			stores[sessionID] = s
			return s
		}, nil

	case config.StoreFile:
		dir := a.cfg.CredFilePath
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("resolve credential directory: %w", err)
			}
			dir = filepath.Join(base, "storefront", "sessions")
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credential directory: %w", err)
		}
		return func(sessionID string) credstore.Store {
			return credstore.NewFileStore(filepath.Join(dir, sessionID+".json"))
		}, nil

	case config.StoreRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		ttl := a.cfg.SessionTTL
		return func(sessionID string) credstore.Store {
			return credstore.NewRedisStore(client, sessionID, ttl)
		}, nil

	default:
		return nil, fmt.Errorf("unknown credential store backend %q", a.cfg.CredStore)
	}
}
