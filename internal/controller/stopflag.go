package controller

import (
	"sync"
	"sync/atomic"
)

// StopFlag is a once-only, run-wide stop signal. Guard lets a caller perform
// an externally visible action only while the flag is unset, and Set waits for
// running guarded actions, so nothing guarded starts after Set returns.
type StopFlag struct {
	set    atomic.Bool
	gate   sync.RWMutex
	reason string
	done   chan struct{}
}

// NewStopFlag returns an unset flag.
func NewStopFlag() *StopFlag {
	return &StopFlag{done: make(chan struct{})}
}

// Set raises the flag. It returns false when the flag was already set, in
// which case the original reason is kept.
func (f *StopFlag) Set(reason string) bool {
	f.gate.Lock()
	defer f.gate.Unlock()
	if f.set.Load() {
		return false
	}
	f.reason = reason
	f.set.Store(true)
	close(f.done)
	return true
}

// IsSet reports whether the flag has been raised.
func (f *StopFlag) IsSet() bool {
	return f.set.Load()
}

// Reason returns why the flag was raised, or "" while unset.
func (f *StopFlag) Reason() string {
	f.gate.RLock()
	defer f.gate.RUnlock()
	return f.reason
}

// Done is closed once the flag is set.
func (f *StopFlag) Done() <-chan struct{} {
	return f.done
}

// Guard runs fn unless the flag is set and reports whether it ran.
func (f *StopFlag) Guard(fn func()) bool {
	f.gate.RLock()
	defer f.gate.RUnlock()
	if f.set.Load() {
		return false
	}
	fn()
	return true
}
