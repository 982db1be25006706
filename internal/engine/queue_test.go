package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func item(field string) queued {
	return queued{trigger: ir.Trigger{FieldID: field, Kind: ir.TriggerChange}}
}

func TestTriggerQueue_FIFO(t *testing.T) {
	q := newTriggerQueue(0)
	for _, f := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(item(f)))
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.trigger.FieldID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTriggerQueue_Capacity(t *testing.T) {
	q := newTriggerQueue(2)
	assert.True(t, q.Enqueue(item("a")))
	assert.True(t, q.Enqueue(item("b")))
	assert.False(t, q.Enqueue(item("c")), "full queue rejects")
	assert.Equal(t, 2, q.Len())
}

func TestTriggerQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newTriggerQueue(0)

	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()

	q.Close()
	q.Close() // idempotent

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Close")
	}

	assert.False(t, q.Enqueue(item("a")))
	assert.True(t, q.Closed())
}

func TestTriggerQueue_SignalCoalesces(t *testing.T) {
	q := newTriggerQueue(0)
	q.Enqueue(item("a"))
	q.Enqueue(item("b"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestTriggerQueue_ConcurrentEnqueue(t *testing.T) {
	q := newTriggerQueue(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(item("f"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())
}
