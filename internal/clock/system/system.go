// Package system provides clocks for stamping jobs and stored paths.
package system

import (
	"sync"
	"time"
)

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Stepping is a deterministic clock that advances by a fixed step on every
// read. It is safe for concurrent use.
type Stepping struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepping returns a clock starting at start that advances by step per call.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{now: start.UTC(), step: step}
}

// Now returns the current reading and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now
	s.now = s.now.Add(s.step)
	return now
}
