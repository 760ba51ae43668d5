package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every response-cache key in Redis.
const DefaultRedisNamespace = "dispatch:cache:"

// RedisStore relies on native key TTLs; prefix deletes walk SCAN.
type RedisStore struct {
	rdb       redis.Cmdable
	ns        string
	scanCount int64
}

func NewRedisStore(rdb redis.Cmdable, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	return &RedisStore{rdb: rdb, ns: namespace, scanCount: 100}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.ns+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("op=cache.redis.get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.ns+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.redis.set: %w", err)
	}
	return nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(s.ns+prefix) + "*"
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return int(deleted), fmt.Errorf("op=cache.redis.scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return int(deleted), fmt.Errorf("op=cache.redis.del: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return int(deleted), nil
		}
	}
}

func (s *RedisStore) Kind() string { return "redis" }

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
