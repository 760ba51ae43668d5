package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/observability"
)

// DefaultTTL is the lifetime of a cached answer.
const DefaultTTL = time.Hour

// Stats is a snapshot of cache counters since process start.
type Stats struct {
	Backend    string  `json:"cache_type"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Sets       int64   `json:"sets"`
	Errors     int64   `json:"errors"`
	Requests   int64   `json:"total_requests"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds int     `json:"ttl_seconds"`
}

// ResponseCache fronts a Store. Lookup errors are reported as misses so that
// a degraded store never blocks dispatch.
type ResponseCache struct {
	store Store
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errs   atomic.Int64
}

// New wraps store. A non-positive ttl uses DefaultTTL.
func New(store Store, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{store: store, ttl: ttl}
}

func (c *ResponseCache) TTL() time.Duration { return c.ttl }

func (c *ResponseCache) Backend() string { return c.store.Kind() }

// Get returns the cached value for key, if present and unexpired.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.errs.Add(1)
		c.misses.Add(1)
		observability.ObserveCacheLookup(c.store.Kind(), "error")
		slog.Warn("response cache get failed", slog.String("key", key), slog.Any("error", err))
		return "", false
	case !ok:
		c.misses.Add(1)
		observability.ObserveCacheLookup(c.store.Kind(), "miss")
		return "", false
	}
	c.hits.Add(1)
	observability.ObserveCacheLookup(c.store.Kind(), "hit")
	return v, true
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *ResponseCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("op=cache.set: %w", err)
	}
	c.sets.Add(1)
	return nil
}

// Invalidate removes every entry of a conversation and returns the count.
func (c *ResponseCache) Invalidate(ctx context.Context, conversationID string) (int, error) {
	n, err := c.store.DeletePrefix(ctx, ConversationPrefix(conversationID))
	if err != nil {
		c.errs.Add(1)
		return n, fmt.Errorf("op=cache.invalidate: %w", err)
	}
	observability.ObserveCacheInvalidation(c.store.Kind(), n)
	return n, nil
}

func (c *ResponseCache) Stats() Stats {
	s := Stats{
		Backend:    c.store.Kind(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Sets:       c.sets.Load(),
		Errors:     c.errs.Load(),
		TTLSeconds: int(c.ttl / time.Second),
	}
	s.Requests = s.Hits + s.Misses
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests)
	}
	return s
}

func (c *ResponseCache) Close() error { return c.store.Close() }
