package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow keeps admission timestamps in process memory.
type SlidingWindow struct {
	cfg settings

	mu     sync.Mutex
	stamps []time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

func NewSlidingWindow(opts ...Option) *SlidingWindow {
	cfg := newSettings(opts)
	return &SlidingWindow{cfg: cfg, stamps: make([]time.Time, 0, cfg.limit)}
}

// TryAdmit prunes stamps at or beyond the window edge, then admits when
// fewer than limit remain.
func (l *SlidingWindow) TryAdmit(_ context.Context) (Admission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.now()
	l.pruneLocked(now)
	if len(l.stamps) >= l.cfg.limit {
		return l.cfg.admission(false, len(l.stamps)), nil
	}
	l.stamps = append(l.stamps, now)
	return l.cfg.admission(true, len(l.stamps)), nil
}

func (l *SlidingWindow) Peek(_ context.Context) (Admission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.cfg.now())
	a := l.cfg.admission(len(l.stamps) < l.cfg.limit, len(l.stamps))
	if !a.Allowed {
		return a, nil
	}
	a.RetryAfterSeconds = 0
	return a, nil
}

func (l *SlidingWindow) pruneLocked(now time.Time) {
	edge := now.Add(-l.cfg.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(edge) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

func (l *SlidingWindow) Close() error { return nil }
