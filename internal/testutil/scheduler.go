// Package testutil holds deterministic stand-ins for time used across
// package tests.
package testutil

import (
	"sync"
	"time"
)

// ManualScheduler records delayed callbacks instead of running them.
// It satisfies engine.Scheduler; tests fire the callbacks explicitly.
//
// Thread-safety: All methods are safe for concurrent use.
type ManualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

// AfterFunc records f and its delay.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
}

// Delays returns every delay scheduled so far, fired or not.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// Pending returns the number of callbacks not yet fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FireAll runs the pending callbacks in scheduling order. Callbacks
// scheduled while firing stay pending for the next call.
func (s *ManualScheduler) FireAll() int {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, f := range fns {
		f()
	}
	return len(fns)
}
