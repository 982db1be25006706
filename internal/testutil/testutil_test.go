package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler(t *testing.T) {
	var (
		s     ManualScheduler
		fired []string
	)
	s.AfterFunc(50*time.Millisecond, func() {
		fired = append(fired, "a")
		s.AfterFunc(time.Millisecond, func() { fired = append(fired, "c") })
	})
	s.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "b") })

	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, 2, s.FireAll())
	assert.Equal(t, []string{"a", "b"}, fired)

	// Scheduled during the first round.
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 1, s.FireAll())
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 10 * time.Millisecond, time.Millisecond}, s.Delays())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	c := NewManualClock(start)

	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, start.Equal(c.Now()))
	assert.True(t, start.Add(time.Minute).Equal(c.Advance(time.Minute)))
	assert.True(t, start.Add(time.Minute).Equal(c.Now()))
}
