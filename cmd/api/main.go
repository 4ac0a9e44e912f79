package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/cache"
	"github.com/king-app/king/backend/internal/config"
	"github.com/king-app/king/backend/internal/handler"
	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/internal/observability"
	"github.com/king-app/king/backend/internal/service/ai"
	"github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using process environment", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Log.Level)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	history, err := openHistoryStore(cfg.Database)
	if err != nil {
		return err
	}
	if closer, ok := history.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info("history store ready", "driver", cfg.Database.Driver)

	provider, err := ai.NewProvider(ctx, cfg.AI.ProviderConfig())
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}
	logger.Info("language model provider ready", "provider", cfg.AI.Provider, "model", cfg.AI.Params().Model)

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, auth.DefaultAccessTTL)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	deps := handler.Dependencies{
		Personas: persona.NewMemoryStore(persona.Seed()),
		Chat:     chat.NewService(history),
		Tokens:   tokens,
		Logger:   logger,
	}

	var locker chat.Locker = chat.NewMemoryLocker()
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return err
		}
		defer client.Close()

		redisLocker, err := cache.NewRedisLocker(client, "king:lock", cfg.Stream.LockTTL)
		if err != nil {
			return err
		}
		locker = redisLocker

		if cfg.Stream.RateLimit > 0 {
			limiter, err := cache.NewFixedWindowLimiter(client, "king:ratelimit", cfg.Stream.RateLimit, time.Minute)
			if err != nil {
				return err
			}
			deps.Limiter = limiter
		}
		logger.Info("redis enabled", "addr", cfg.Redis.Addr)
	} else if cfg.Stream.RateLimit > 0 {
		logger.Warn("CHAT_RATE_LIMIT ignored without REDIS_ADDR")
	}

	opts := []chat.Option{
		chat.WithConfig(chat.Config{
			Params:              cfg.AI.Params(),
			Buffer:              cfg.Stream.Buffer,
			SavePartialOnCancel: cfg.Stream.SavePartialOnCancel,
		}),
		chat.WithDispatcher(chat.NewDispatcher(cfg.Stream.PersistConcurrency, cfg.Stream.PersistTimeout)),
		chat.WithMetrics(observability.NewStreamingMetrics(prometheus.DefaultRegisterer)),
		chat.WithLogger(logger),
	}
	if cfg.Stream.SerializePerUser {
		opts = append(opts, chat.WithGuard(chat.NewGuard(locker)))
	}
	pipeline := chat.NewPipeline(history, provider, ai.NewPromptBuilder(), opts...)
	deps.Pipeline = pipeline

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("king backend listening", "addr", cfg.Server.Addr)
	serveErr := runServer(ctx, srv)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Stream.PersistTimeout)
	defer cancel()
	if err := pipeline.Shutdown(drainCtx); err != nil {
		logger.Warn("pending history writes abandoned", "err", err)
	}
	return serveErr
}

func openHistoryStore(cfg config.DatabaseConfig) (chat.HistoryStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := store.NewGormStore(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres history: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
