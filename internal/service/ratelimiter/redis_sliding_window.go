package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// DefaultRedisKey holds the global admission window.
const DefaultRedisKey = "dispatch:ratelimit:global"

// RedisSlidingWindow shares one window across processes through a sorted
// set scored by admission time in milliseconds. Prune, count and append run
// inside one Lua script so concurrent callers cannot split the last slot.
type RedisSlidingWindow struct {
	redis  redis.Scripter
	key    string
	cfg    settings
	script *redis.Script
}

var _ Limiter = (*RedisSlidingWindow)(nil)

const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local peek = tonumber(ARGV[5])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)

if peek == 1 or count >= limit then
  return { 0, count }
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window)
return { 1, count + 1 }
`

// NewRedisSlidingWindow builds a limiter on rdb. An empty key uses DefaultRedisKey.
func NewRedisSlidingWindow(rdb redis.Scripter, key string, opts ...Option) *RedisSlidingWindow {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSlidingWindow{
		redis:  rdb,
		key:    key,
		cfg:    newSettings(opts),
		script: redis.NewScript(luaSlidingWindowScript),
	}
}

func (l *RedisSlidingWindow) TryAdmit(ctx context.Context) (Admission, error) {
	return l.run(ctx, false)
}

func (l *RedisSlidingWindow) Peek(ctx context.Context) (Admission, error) {
	a, err := l.run(ctx, true)
	if err != nil {
		return Admission{}, err
	}
	if a.Used < l.cfg.limit {
		a = l.cfg.admission(true, a.Used)
	}
	return a, nil
}

func (l *RedisSlidingWindow) run(ctx context.Context, peek bool) (Admission, error) {
	now := l.cfg.now().UnixMilli()
	peekArg := 0
	if peek {
		peekArg = 1
	}
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())
	res, err := l.script.Run(ctx, l.redis, []string{l.key}, now, l.cfg.window.Milliseconds(), l.cfg.limit, member, peekArg).Int64Slice()
	if err != nil {
		slog.Error("redis sliding window script error", slog.String("key", l.key), slog.Any("error", err))
		return Admission{}, fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err)
	}
	if len(res) < 2 {
		return Admission{}, fmt.Errorf("%w: unexpected script result %v", domain.ErrLimiterUnavailable, res)
	}
	return l.cfg.admission(res[0] == 1, int(res[1])), nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisSlidingWindow) Close() error { return nil }
