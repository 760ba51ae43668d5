// Package ratelimiter implements the global sliding-window admission gate
// in front of backend calls, in-process or shared through Redis.
package ratelimiter

import (
	"context"
	"time"
)

const (
	// DefaultLimit is the number of admissions per window.
	DefaultLimit = 5
	// DefaultWindow is the trailing window length.
	DefaultWindow = 60 * time.Second
)

// Admission is the outcome of one admission check.
type Admission struct {
	Allowed           bool `json:"allowed"`
	Used              int  `json:"used"`
	Limit             int  `json:"limit"`
	Remaining         int  `json:"remaining"`
	RetryAfterSeconds int  `json:"retry_after_seconds"`
}

// Limiter is a single global budget. An error means the limiter could not
// evaluate the window; callers must not treat it as an admission.
type Limiter interface {
	TryAdmit(ctx context.Context) (Admission, error)
	// Peek reports current usage without consuming budget.
	Peek(ctx context.Context) (Admission, error)
	Close() error
}

// Option configures a limiter.
type Option func(*settings)

type settings struct {
	limit  int
	window time.Duration
	now    func() time.Time
}

// WithLimit overrides the admissions per window.
func WithLimit(n int) Option { return func(s *settings) { s.limit = n } }

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option { return func(s *settings) { s.window = d } }

// WithClock injects a time source.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

func newSettings(opts []Option) settings {
	s := settings{limit: DefaultLimit, window: DefaultWindow, now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	return s
}

// admission converts a retained count into an outcome. admitted means the
// caller appended a timestamp, so count already includes it.
func (s settings) admission(admitted bool, count int) Admission {
	if !admitted {
		return Admission{
			Allowed:           false,
			Used:              count,
			Limit:             s.limit,
			Remaining:         max(s.limit-count, 0),
			RetryAfterSeconds: int(s.window / time.Second),
		}
	}
	return Admission{Allowed: true, Used: count, Limit: s.limit, Remaining: max(s.limit-count, 0)}
}
