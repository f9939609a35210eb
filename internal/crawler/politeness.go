package crawler

import (
	"context"
	"time"
)

// Pauser abstracts how the traversal waits between requests.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer, returning early when ctx is done.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// PauserFunc adapts a function to Pauser.
type PauserFunc func(ctx context.Context, delay time.Duration)

// Pause calls f.
func (f PauserFunc) Pause(ctx context.Context, delay time.Duration) {
	f(ctx, delay)
}
