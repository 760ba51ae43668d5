package app

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai/real"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai/stub"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/cache"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/internal/service/ratelimiter"
)

// Redis key layout shared by every replica.
const (
	RedisLimiterKey     = "chat-dispatch:ratelimit:dispatch"
	RedisCacheNamespace = "chat-dispatch:cache"
)

// BuildLimiter returns the dispatch admission limiter selected by
// RATE_LIMITER_BACKEND. The redis backend needs rdb.
func BuildLimiter(cfg config.Config, rdb *redis.Client) (ratelimiter.Limiter, error) {
	opts := []ratelimiter.Option{
		ratelimiter.WithLimit(cfg.DispatchRateLimitPerMin),
		ratelimiter.WithWindow(cfg.DispatchRateWindow),
	}
	switch cfg.RateLimiterBackend {
	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("op=app.limiter: redis backend selected without a redis client")
		}
		return ratelimiter.NewRedisSlidingWindow(rdb, RedisLimiterKey, opts...), nil
	default:
		return ratelimiter.NewSlidingWindow(opts...), nil
	}
}

// BuildCache returns the response cache selected by CACHE_BACKEND.
func BuildCache(cfg config.Config, rdb *redis.Client) (*cache.ResponseCache, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("op=app.cache: redis backend selected without a redis client")
		}
		return cache.New(cache.NewRedisStore(rdb, RedisCacheNamespace), cfg.CacheTTL), nil
	default:
		return cache.New(cache.NewMemoryStore(cfg.CacheSweepInterval), cfg.CacheTTL), nil
	}
}

// BuildBackend returns the completion backend selected by BACKEND_PROVIDER.
func BuildBackend(cfg config.Config) domain.BackendCaller {
	if cfg.BackendProvider == config.ProviderStub {
		slog.Warn("using stub completion backend")
		return stub.New()
	}
	return real.New(cfg)
}
