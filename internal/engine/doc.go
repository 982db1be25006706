// Package engine implements the field dependency evaluation engine.
//
// The engine receives triggers (a field changed, blurred, gained focus, the
// form was submitted, or a custom event fired), finds the dependencies
// listening on that field, evaluates their conditions, and proposes
// mutations for their targets.
//
// ARCHITECTURE:
//
// Pure evaluation pass:
// Evaluate is a function of the dependency graph, the trigger and a
// registry snapshot. It never writes outside its private copy. The pieces
// run in this order for every evaluated field:
//  1. ResolveConditions folds the dependency's conditions left to right
//  2. Dispatch maps fired actions to mutation descriptors and events
//  3. ResolvePriority keeps one winner per (target, kind)
//  4. Winners are applied to the working copy; changed values propagate
//
// Single-writer loop:
// Engine wraps the pass with a FIFO trigger queue. Enqueue is safe from any
// goroutine; Run processes triggers one at a time so no two passes
// interleave. Mutations reach the registry through Registry.Apply, which
// acknowledges every write.
//
// Events:
// trigger_event actions never mutate fields. The engine hands events to the
// configured sink after the pass, immediately or after their delay, and
// re-enters any listening custom dependency as a brand-new top-level
// trigger with its own visited-set.
//
// GUARANTEES:
//
// Termination: each field is evaluated at most once per pass, so a pass
// ends within a number of levels bounded by the field count even when
// enabled dependencies form a cycle.
//
// Determinism: dependencies are evaluated in declaration order and ties in
// priority go to the earlier declaration.
package engine
