package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// BuildReadinessChecks returns the db, redis and tika readiness checks. A nil
// redis client yields a nil check: redis is only probed when a component
// is backed by it.
func BuildReadinessChecks(pool Pinger, rdb RedisPinger, tika Pinger) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	var redisCheck func(ctx context.Context) error
	if rdb != nil {
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	tikaCheck := func(ctx context.Context) error {
		if tika == nil {
			return fmt.Errorf("tika not configured")
		}
		return tika.Ping(ctx)
	}
	return dbCheck, redisCheck, tikaCheck
}
