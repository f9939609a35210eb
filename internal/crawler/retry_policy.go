package crawler

import (
	"context"
	"errors"
	"time"
)

// Defaults for FixedRetryPolicy.
const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 2 * time.Second
)

// FixedRetryPolicy retries a bounded number of times with a constant delay,
// without growth or jitter.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy allowing maxAttempts total attempts,
// waiting delay between them. Non-positive values fall back to the defaults;
// a zero delay is kept as is.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryBackoff
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts, delay: delay}
}

// MaxAttempts returns the total number of attempts allowed.
func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether another attempt may follow attempt (1-based).
// A per-request timeout is retried like any other network error; only an
// explicit cancellation is final. Callers check their own context separately.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Backoff returns the wait before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
