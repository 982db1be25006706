package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxEventHops bounds chains of event-spawned triggers.
//
// The visited-set bounds a single pass. A trigger_event whose custom
// listener fires another trigger_event starts a new pass each time, so the
// chain itself needs its own limit.
const DefaultMaxEventHops = 16

// HopsExceededError is returned when an event would re-enter the engine
// past the hop limit. The event is still delivered to the sink; only the
// re-entry is dropped.
type HopsExceededError struct {
	Event string // event name
	Hops  int    // hops the re-entry would have taken
	Limit int
}

// Error implements the error interface.
func (e *HopsExceededError) Error() string {
	return fmt.Sprintf("event %q exceeded re-entry limit: %d hops > %d", e.Event, e.Hops, e.Limit)
}

// IsHopsExceededError returns true if the error is a HopsExceededError.
func IsHopsExceededError(err error) bool {
	var he *HopsExceededError
	return errors.As(err, &he)
}

// checkHops validates a re-entry that would take hops steps.
func checkHops(event string, hops, limit int) error {
	if hops > limit {
		return &HopsExceededError{Event: event, Hops: hops, Limit: limit}
	}
	return nil
}
