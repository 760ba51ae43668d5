// Command server starts the chat dispatch HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/chat-dispatch/internal/adapter/httpserver"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/observability"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/chat-dispatch/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/chat-dispatch/internal/app"
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	if err := run(cfg); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", slog.Int("categories", len(cat.Categories())), slog.Int("rules", len(cat.Rules())), slog.String("file", cfg.CatalogFile))

	pool, err := app.ConnectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		if rdb, err = app.ConnectRedis(ctx, cfg); err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}

	limiter, err := app.BuildLimiter(cfg, rdb)
	if err != nil {
		return err
	}
	defer func() { _ = limiter.Close() }()

	respCache, err := app.BuildCache(cfg, rdb)
	if err != nil {
		return err
	}
	defer func() { _ = respCache.Close() }()

	slog.Info("dispatch core ready",
		slog.String("limiter_backend", cfg.RateLimiterBackend),
		slog.Int("limit", cfg.DispatchRateLimitPerMin),
		slog.Duration("window", cfg.DispatchRateWindow),
		slog.String("cache_backend", respCache.Backend()),
		slog.Duration("cache_ttl", respCache.TTL()),
		slog.String("backend_provider", cfg.BackendProvider),
		slog.Duration("backend_timeout", cfg.BackendTimeout),
	)

	convRepo := postgres.NewConversationRepo(pool)
	msgRepo := postgres.NewMessageRepo(pool)
	fileRepo := postgres.NewFileRepo(pool)
	extractor := tikaext.New(cfg.TikaURL)

	selector := routing.NewSelector(cat, routing.NewClassifier(cat))
	prompts := usecase.NewPromptBuilder(cfg.HistoryTurns, tokencount.DefaultCounter)
	dispatch := usecase.NewDispatchService(selector, limiter, respCache, app.BuildBackend(cfg), prompts, cfg.BackendTimeout)
	chatSvc := usecase.NewChatService(convRepo, msgRepo, fileRepo, dispatch, cfg.HistoryTurns)
	uploadSvc := usecase.NewUploadService(convRepo, fileRepo, extractor, cat, respCache)

	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(pool, redisPinger(rdb), extractor)
	srv := httpserver.NewServer(cfg, chatSvc, uploadSvc, respCache, limiter, cat, selector, dbCheck, redisCheck, tikaCheck)
	if !cfg.AdminEnabled() {
		slog.Warn("admin credentials not configured; cache invalidation endpoint disabled")
	}

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(srvHTTP, cfg.ServerShutdownTimeout)
}

// redisPinger keeps a nil client from becoming a non-nil interface.
func redisPinger(rdb *redis.Client) app.RedisPinger {
	if rdb == nil {
		return nil
	}
	return rdb
}

// serve runs srv until SIGINT/SIGTERM, then drains in-flight requests.
func serve(srv *http.Server, drain time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
