package harness

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/roach88/formdeps/internal/compiler"
	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/registry"
)

// Harness runs scenarios against the real engine with deterministic pass
// ids and a virtual timer for delayed events.
type Harness struct {
	reg    *registry.Memory
	engine *engine.Engine
	timer  *virtualTimer
	logger *slog.Logger
	result *Result
	mu     sync.Mutex
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh in-memory registry built from its form.
//
// Execution flow:
//  1. Load the form and apply initial value overrides
//  2. For each step: write Set values, enqueue the trigger, drain the queue
//     and fire delayed events in delay order until nothing is pending
//  3. Evaluate assertions and properties
func Run(scenario *Scenario) (*Result, error) {
	doc, err := compiler.Load(scenario.Form)
	if err != nil {
		return nil, fmt.Errorf("failed to load form: %w", err)
	}
	if errs := doc.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("form %s is invalid: %v", scenario.Form, errs[0])
	}

	h := newHarness(doc.Form)
	if err := h.setValues(scenario.Values); err != nil {
		return nil, fmt.Errorf("failed to apply initial values: %w", err)
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result := h.result
	result.Final = h.reg.Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range CheckProperties(result, scenario.Properties, h.engine.Graph(), len(doc.Form.Fields)) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(form *ir.Form) *Harness {
	h := &Harness{
		reg:    registry.NewMemory(form.Fields),
		timer:  &virtualTimer{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		result: NewResult(),
	}
	h.engine = engine.New(h.reg, form.Dependencies,
		engine.WithLogger(h.logger),
		engine.WithPassIDGenerator(engine.NewSequenceGenerator("pass")),
		engine.WithScheduler(h.timer),
		engine.WithEventSink(h.deliver),
	)
	return h
}

func (h *Harness) deliver(ev ir.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.Delivered = append(h.result.Delivered, ev)
}

// setValues writes values in key order so registry callbacks are
// deterministic.
func (h *Harness) setValues(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := h.reg.Set(k, ir.Normalize(values[k])); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) runStep(ctx context.Context, index int, step Step) error {
	if err := h.setValues(step.Set); err != nil {
		return err
	}
	if !h.engine.Enqueue(step.Trigger.Trigger()) {
		return fmt.Errorf("engine rejected trigger on %q", step.Trigger.Field)
	}

	for {
		results, err := h.engine.Drain(ctx)
		for _, res := range results {
			h.result.AddPass(index, res)
		}
		if err != nil {
			return err
		}
		if !h.timer.fire() {
			return nil
		}
	}
}

// virtualTimer collects delayed callbacks and fires them on demand, in
// delay order with ties kept in scheduling order.
type virtualTimer struct {
	mu      sync.Mutex
	pending []timerEntry
}

type timerEntry struct {
	delay time.Duration
	f     func()
}

func (v *virtualTimer) AfterFunc(d time.Duration, f func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = append(v.pending, timerEntry{delay: d, f: f})
}

// fire runs every pending callback and reports whether any ran.
func (v *virtualTimer) fire() bool {
	v.mu.Lock()
	batch := v.pending
	v.pending = nil
	v.mu.Unlock()

	slices.SortStableFunc(batch, func(a, b timerEntry) int {
		return cmp.Compare(a.delay, b.delay)
	})
	for _, e := range batch {
		e.f()
	}
	return len(batch) > 0
}
