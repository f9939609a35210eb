// Package ratelimit paces outbound article requests with a token bucket per host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/wikipath-crawler/internal/metrics"
)

// Limiter manages per-host rate limits shared by every walker of a run.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// Config holds rate limiter configuration. A non-positive RequestsPerSecond
// disables pacing.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    r,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the locator's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, locator string) error {
	host := "unknown"
	if u, err := url.Parse(locator); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	start := time.Now()
	if err := l.forHost(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Waits that returned immediately are not delays.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

// Unlimited reports whether the limiter never blocks.
func (l *Limiter) Unlimited() bool {
	return l.limit == rate.Inf
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}
