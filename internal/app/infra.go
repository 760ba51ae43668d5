package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
)

// retryConnect runs op with exponential backoff until it succeeds, ctx ends
// or maxElapsed passes. Only used at startup; dispatch never retries here.
func retryConnect(ctx context.Context, name string, maxElapsed time.Duration, op func(context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 250 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = maxElapsed
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := op(ctx); err != nil {
			slog.Warn("infra connect failed", slog.String("component", name), slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		return nil
	}, backoff.WithContext(expo, ctx))
	if err != nil {
		return fmt.Errorf("op=connect.%s: %w", name, err)
	}
	return nil
}

// ConnectPostgres opens the traced pool and waits until it answers a ping.
// The schema is ensured before returning.
func ConnectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=connect.postgres: %w", err)
	}
	if err := retryConnect(ctx, "postgres", cfg.InfraConnectMaxElapsed, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ConnectRedis parses REDIS_URL and waits until the server answers a ping.
func ConnectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=connect.redis: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := retryConnect(ctx, "redis", cfg.InfraConnectMaxElapsed, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
