package engine

import "sync/atomic"

// Clock stamps passes with a strictly increasing sequence number.
//
// The evaluation log orders passes by seq, never by wall-clock time, so two
// passes within the same millisecond still have a defined order. A clock
// resumed with NewClockAt continues an existing log.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
