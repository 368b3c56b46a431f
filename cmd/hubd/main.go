// Command hubd runs the notification hub: the REST API, the websocket
// push endpoint, and the optional redis bridge that links hub instances.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bellhop-dev/bellhop/internal/auth"
	"github.com/bellhop-dev/bellhop/internal/config"
	"github.com/bellhop-dev/bellhop/internal/hub"
	"github.com/bellhop-dev/bellhop/internal/metrics"
	"github.com/bellhop-dev/bellhop/internal/server"
	"github.com/bellhop-dev/bellhop/internal/storage"
	"github.com/bellhop-dev/bellhop/internal/version"
	"github.com/bellhop-dev/bellhop/internal/xslog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	keyPort        = "port"
	keyVersion     = "version"
	keyGracePeriod = "grace_period"

	wsShutdownGracePeriod = 2 * time.Second
)

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close store", xslog.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret)

	opts := []hub.Option{hub.WithMetrics(metrics.New(registry))}
	bridge, err := initBridge(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis bridge: %w", err)
	}
	if bridge != nil {
		opts = append(opts, hub.WithBridge(bridge))
	}

	h := hub.New(hub.Config{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		TimeoutFactor:     cfg.Hub.HeartbeatTimeoutFactor,
		QueueSize:         cfg.Hub.WriteQueueSize,
	}, validator, logger, opts...)

	handler := server.Routes(server.Deps{
		Hub:       h,
		Store:     store,
		Validator: validator,
		Registry:  registry,
		Logger:    logger,
		RateLimit: cfg.RateLimit.Limit,
		RateBurst: cfg.RateLimit.Burst,
	})

	shutdownCoordinator := server.NewShutdownCoordinator(wsShutdownGracePeriod)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // disabled for websockets; deadlines are per-write
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return shutdownCoordinator.BaseContext()
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.Run(gctx)
	})

	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx, h)
		})
	}

	g.Go(func() error {
		logger.InfoContext(gctx, "starting server",
			slog.String(keyVersion, version.Get()),
			slog.String(keyPort, cfg.Port),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")

		// cancel the base context and wait for websocket close frames
		shutdownCoordinator.InitiateShutdown()
		logger.InfoContext(ctx, "grace period complete, shutting down server",
			slog.Duration(keyGracePeriod, wsShutdownGracePeriod))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}

func initStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.NotificationStore, error) {
	if cfg.Postgres.URL == "" {
		if cfg.Env.IsProduction() {
			return nil, errors.New("POSTGRES_URL is required in production")
		}
		logger.WarnContext(ctx, "no postgres url configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}

	logger.InfoContext(ctx, "initializing postgres store")
	store, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func initBridge(ctx context.Context, cfg config.Config, logger *slog.Logger) (*hub.RedisBridge, error) {
	if cfg.Redis.URL == "" {
		logger.InfoContext(ctx, "no redis url configured, running single-instance")
		return nil, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.InfoContext(ctx, "initializing redis bridge")
	return hub.NewRedisBridge(client, logger), nil
}
