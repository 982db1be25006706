package engine

import (
	"github.com/roach88/formdeps/internal/graph"
	"github.com/roach88/formdeps/internal/ir"
)

// State is the orchestrator's position within a pass.
type State int

const (
	StateIdle State = iota
	StateEvaluating
	StatePropagating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StatePropagating:
		return "propagating"
	default:
		return "unknown"
	}
}

// StateFunc observes state transitions.
type StateFunc func(State)

// Evaluate runs one top-level pass for trigger t against snap.
//
// The pass works on a private copy of snap and never writes to it. Fields
// are evaluated breadth-first from the trigger field. Every field targeted by
// a winning value mutation is then evaluated as if it had received a change
// trigger, unless it was already evaluated in this pass. Targets propagate
// even when their value did not change, so a replay still reaches every
// dependency that won a slot the first time.
//
// Ordering rules:
//   - within one field, dependencies are evaluated in declaration order
//   - fields of one level are evaluated in the order they were queued
//   - a (target, kind) slot belongs to the highest-priority mutation seen
//     anywhere in the pass, so a later level can take a slot from an
//     earlier one but never from a higher priority
//
// A write to a field already evaluated is applied but not propagated. It is
// reported in CyclicPropagationTruncated only when the field lies on the
// propagation chain that produced the write, which is to say it closed a
// cycle.
//
// The result holds at most one mutation per slot, and only those that
// differ from snap, so replaying a trigger on its own output yields nothing.
func Evaluate(g *graph.Graph, t ir.Trigger, snap ir.Snapshot) ir.Result {
	return evaluate(g, t, snap, nil)
}

func evaluate(g *graph.Graph, t ir.Trigger, snap ir.Snapshot, onState StateFunc) ir.Result {
	p := &pass{
		graph:   g,
		input:   snap,
		snap:    snap.Clone(),
		visited: newVisitedSet(),
		slots:   make(map[string]ir.Mutation),
		onState: onState,
		result:  ir.Result{Trigger: t, Mutations: []ir.Mutation{}, Visited: []string{}},
	}
	return p.run()
}

type pass struct {
	graph   *graph.Graph
	input   ir.Snapshot // read only
	snap    ir.Snapshot // working copy
	visited *visitedSet
	slots   map[string]ir.Mutation // winning mutation per conflict key, no-ops included
	keys    []string               // conflict keys in first-claim order
	onState StateFunc
	result  ir.Result
}

func (p *pass) transition(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *pass) run() ir.Result {
	t := p.result.Trigger
	p.transition(StateEvaluating)
	defer p.transition(StateIdle)

	if _, ok := p.snap[t.FieldID]; !ok {
		p.result.Diagnostics = append(p.result.Diagnostics, ir.MissingField("", t.FieldID))
		return p.result
	}

	level := []string{t.FieldID}
	trig := t
	for len(level) > 0 {
		var next []string
		for _, fieldID := range level {
			if !p.visited.Visit(fieldID) {
				continue
			}
			trig.FieldID = fieldID
			next = append(next, p.step(trig)...)
		}

		if len(next) == 0 {
			break
		}
		p.result.Levels++
		p.transition(StatePropagating)
		level = next
		trig = ir.Trigger{Kind: ir.TriggerChange}
	}

	for _, key := range p.keys {
		if m := p.slots[key]; p.input.Changes(m) {
			p.result.Mutations = append(p.result.Mutations, m)
		}
	}
	p.result.Visited = append(p.result.Visited, p.visited.Order()...)
	if refused := p.visited.Refused(); len(refused) > 0 {
		p.result.Diagnostics = append(p.result.Diagnostics, ir.CyclicTruncated(refused))
	}
	return p.result
}

// step evaluates every enabled dependency listening on trig and commits the
// winners. It returns the fields queued for the next level.
func (p *pass) step(trig ir.Trigger) []string {
	var batch []ir.Mutation

	for _, e := range p.graph.Outgoing(trig.FieldID) {
		dep := e.Dependency
		if e.Disabled || !dep.Matches(trig) {
			continue
		}

		fired, diags := ResolveConditions(dep, p.snap)
		p.result.Diagnostics = append(p.result.Diagnostics, diags...)
		if !fired {
			continue
		}

		muts, events, diags := Dispatch(dep, e.Index, p.snap)
		p.result.Diagnostics = append(p.result.Diagnostics, diags...)
		p.result.Events = append(p.result.Events, events...)
		batch = append(batch, muts...)
	}

	var queued []string
	for _, m := range ResolvePriority(batch) {
		if target, ok := p.commit(trig.FieldID, m); ok {
			queued = append(queued, target)
		}
	}
	return queued
}

// commit settles m, written by the dependencies of field from, against the
// pass-wide winner of its slot and applies it to the working snapshot. It
// reports a field to propagate to.
func (p *pass) commit(from string, m ir.Mutation) (string, bool) {
	key := m.ConflictKey()
	holder, taken := p.slots[key]
	if taken && !outranks(m, holder) {
		return "", false
	}
	if !taken {
		p.keys = append(p.keys, key)
	}
	p.slots[key] = m
	p.snap.Apply(m)

	if m.Kind != ir.MutationValue {
		return "", false
	}
	target := m.TargetFieldID
	if p.visited.Seen(target) {
		if p.visited.OnChain(from, target) {
			p.visited.Refuse(target)
		}
		return "", false
	}
	if p.visited.Queue(target, from) {
		return target, true
	}
	return "", false
}
