package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	ErrBackendFailure     = errors.New("backend failure")
	ErrAllTiersExhausted  = errors.New("all tiers exhausted")
	ErrValidationRejected = errors.New("validation rejected")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrInternal           = errors.New("internal error")
)

// RateLimitedError is returned when the dispatch budget is spent.
type RateLimitedError struct {
	RetryAfterSeconds int
	Used              int
	Limit             int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d requests, retry after %ds", e.Used, e.Limit, e.RetryAfterSeconds)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// ExhaustedError carries the last tier's failure once every tier failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed, last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrAllTiersExhausted, e.Last} }

// RejectedError is an upload admission refusal with a machine-readable reason.
type RejectedError struct {
	Reason  string
	Message string
}

func (e *RejectedError) Error() string { return e.Reason + ": " + e.Message }

func (e *RejectedError) Unwrap() error { return ErrValidationRejected }
