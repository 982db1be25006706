package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/formdeps/internal/graph"
	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/registry"
)

// Recorder persists pass results. Implemented by store.Store.
type Recorder interface {
	WritePass(ctx context.Context, res ir.Result) error
}

// EventSink receives trigger_event output. It is called from the pass
// goroutine for immediate events and from a timer goroutine for delayed
// ones, so it must be safe for concurrent use.
type EventSink func(ev ir.Event)

// Scheduler runs f once after d. Delayed events use it; tests substitute
// a manual implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Engine is the single-writer evaluation loop around Evaluate.
//
// Triggers are processed one at a time in arrival order. Each pass reads a
// registry snapshot, evaluates against the current graph, writes the
// resulting mutations through Registry.Apply, then hands events to the sink.
//
// Thread-safety model:
//   - Enqueue, Rebuild, Graph: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Process, Drain: serialized with Run by the pass lock
//
// Rebuild swaps the graph under graphMu. A pass reads the graph once when it
// starts, so a rebuild lands between passes and never inside one. The pass
// sequence comes from the Clock, which is the only state that outlives a
// pass; everything Evaluate touches is allocated per pass.
type Engine struct {
	reg registry.Registry

	graphMu sync.RWMutex
	graph   *graph.Graph

	passMu    sync.Mutex
	queue     *triggerQueue
	clock     *Clock
	ids       PassIDGenerator
	logger    *slog.Logger
	metrics   *Metrics
	recorder  Recorder
	sink      EventSink
	scheduler Scheduler
	onState   StateFunc
	maxHops   int
	capacity  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records pass metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder writes every pass to an evaluation log.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithEventSink receives trigger_event output.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithScheduler replaces the timer used for delayed events.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithPassIDGenerator replaces the UUIDv7 pass id generator.
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithStateHook observes Idle/Evaluating/Propagating transitions.
func WithStateHook(fn StateFunc) Option {
	return func(e *Engine) { e.onState = fn }
}

// WithClock resumes pass sequence numbers from an existing log.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxEventHops sets the event re-entry limit.
// Default: DefaultMaxEventHops.
func WithMaxEventHops(n int) Option {
	return func(e *Engine) { e.maxHops = n }
}

// WithQueueCapacity bounds the trigger queue. Zero means unbounded.
func WithQueueCapacity(n int) Option {
	return func(e *Engine) { e.capacity = n }
}

// New creates an Engine over reg with the given dependencies.
// The dependency list is copied; call Rebuild after editing it.
func New(reg registry.Registry, deps []ir.FieldDependency, opts ...Option) *Engine {
	e := &Engine{
		reg:       reg,
		graph:     graph.Build(deps),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		scheduler: timerScheduler{},
		maxHops:   DefaultMaxEventHops,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queue = newTriggerQueue(e.capacity)

	if e.graph.HasCycles() {
		for _, c := range e.graph.Cycles() {
			e.logger.Warn("dependency cycle", "cycle", c.Message, "dependencies", c.Dependencies)
		}
	}
	return e
}

// Rebuild replaces the dependency graph. Passes already running keep the
// graph they started with.
func (e *Engine) Rebuild(deps []ir.FieldDependency) *graph.Graph {
	g := graph.Build(deps)

	e.graphMu.Lock()
	e.graph = g
	e.graphMu.Unlock()

	e.logger.Debug("graph rebuilt", "dependencies", len(deps), "cycles", len(g.Cycles()))
	return g
}

// Graph returns the current dependency graph.
func (e *Engine) Graph() *graph.Graph {
	e.graphMu.RLock()
	defer e.graphMu.RUnlock()
	return e.graph
}

// Enqueue submits a trigger for the Run loop.
// Returns false if the engine has been stopped or the queue is full.
func (e *Engine) Enqueue(t ir.Trigger) bool {
	ok := e.queue.Enqueue(queued{trigger: t})
	e.metrics.setQueueDepth(e.queue.Len())
	return ok
}

// QueueLen returns the number of pending triggers.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run processes queued triggers until ctx is cancelled or Stop is called.
// ctx is checked between passes; a pass in progress always completes.
//
// A failed registry write or log write is logged with the trigger and the
// loop continues; the pass itself has already been decided.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		// Checked before every dequeue: queued work does not delay a cancel.
		if err := ctx.Err(); err != nil {
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return err
		}

		item, ok := e.queue.TryDequeue()
		if ok {
			e.metrics.setQueueDepth(e.queue.Len())
			if _, err := e.process(ctx, item); err != nil {
				e.logPassError(item.trigger, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// Signal channel closes with the queue
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Process runs one pass synchronously, outside the queue. Use it when the
// caller owns the loop; it is serialized with Run and Drain.
//
// The result is returned even when err is non-nil.
func (e *Engine) Process(ctx context.Context, t ir.Trigger) (ir.Result, error) {
	if e.queue.Closed() {
		return ir.Result{Trigger: t}, &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped", FieldID: t.FieldID}
	}
	return e.process(ctx, queued{trigger: t})
}

// Drain processes every queued trigger, including those queued by events
// during the drain, and returns their results in order. Delayed events
// still pending are not waited for.
func (e *Engine) Drain(ctx context.Context) ([]ir.Result, error) {
	var (
		results []ir.Result
		errs    []error
	)
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		item, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		e.metrics.setQueueDepth(e.queue.Len())
		res, err := e.process(ctx, item)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Stop closes the trigger queue, which makes Run return once idle.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) process(ctx context.Context, item queued) (ir.Result, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	start := time.Now()
	t := item.trigger
	g := e.Graph()
	snap := e.reg.Snapshot()

	res := evaluate(g, t, snap, e.onState)
	res.PassID = e.ids.Generate()
	res.Seq = e.clock.Next()
	if hash, err := ir.SnapshotHash(snap); err == nil {
		res.SnapshotHash = hash
	} else {
		e.logger.Warn("snapshot hash failed", "pass", res.PassID, "error", err)
	}

	var errs []error
	for _, m := range res.Mutations {
		if _, err := e.reg.Apply(m); err != nil {
			errs = append(errs, newApplyError(res.PassID, m.TargetFieldID, err))
		}
	}

	e.metrics.observePass(res, time.Since(start))

	if e.recorder != nil {
		if err := e.recorder.WritePass(ctx, res); err != nil {
			errs = append(errs, newRecordError(res.PassID, err))
		}
	}

	e.logger.Debug("pass complete",
		"pass", res.PassID,
		"seq", res.Seq,
		"field", t.FieldID,
		"kind", t.Kind,
		"mutations", len(res.Mutations),
		"events", len(res.Events),
		"diagnostics", len(res.Diagnostics),
		"levels", res.Levels,
	)
	for _, d := range res.Diagnostics {
		e.logger.Info("diagnostic", "pass", res.PassID, "code", d.Code, "dependency", d.DependencyID, "message", d.Message)
	}

	for _, ev := range res.Events {
		e.schedule(ev, item.hops)
	}

	return res, errors.Join(errs...)
}

// schedule delivers ev now or after its delay. Delivery never blocks the
// pass that produced it.
func (e *Engine) schedule(ev ir.Event, hops int) {
	if ev.Delay <= 0 {
		e.deliver(ev, hops)
		return
	}
	e.scheduler.AfterFunc(time.Duration(ev.Delay)*time.Millisecond, func() {
		e.deliver(ev, hops)
	})
}

// deliver hands ev to the sink and queues a custom trigger for any
// dependency listening on it, as a fresh top-level pass.
func (e *Engine) deliver(ev ir.Event, hops int) {
	if e.sink != nil {
		e.sink(ev)
	}

	t := ir.Trigger{FieldID: ev.TargetFieldID, Kind: ir.TriggerCustom, Name: ev.Name}
	if !e.hasListener(t) {
		return
	}

	if err := checkHops(ev.Name, hops+1, e.maxHops); err != nil {
		e.metrics.droppedEvent()
		e.logger.Error("event re-entry dropped",
			"event", ev.Name,
			"dependency", ev.DependencyID,
			"field", ev.TargetFieldID,
			"error", err,
		)
		return
	}

	if !e.queue.Enqueue(queued{trigger: t, hops: hops + 1}) {
		e.logger.Warn("event re-entry rejected: queue closed or full", "event", ev.Name, "field", ev.TargetFieldID)
		return
	}
	e.metrics.setQueueDepth(e.queue.Len())
}

func (e *Engine) hasListener(t ir.Trigger) bool {
	for _, edge := range e.Graph().Outgoing(t.FieldID) {
		if !edge.Disabled && edge.Dependency.Matches(t) {
			return true
		}
	}
	return false
}

func (e *Engine) logPassError(t ir.Trigger, err error) {
	e.logger.Error("pass failed",
		"field", t.FieldID,
		"kind", t.Kind,
		"name", t.Name,
		"error", err,
	)
}
