// Package registry holds the canonical field list the engine reads.
//
// The registry is owned by the form renderer. The engine never writes field
// state directly: it proposes mutations and the registry applies and
// acknowledges them through Apply.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/formdeps/internal/ir"
)

// Registry is the collaborator contract the engine depends on.
type Registry interface {
	// Value returns the current value of a field and whether it exists.
	Value(fieldID string) (any, bool)

	// Snapshot returns a deep copy of every field's state.
	Snapshot() ir.Snapshot

	// Apply writes a mutation and reports whether the state changed.
	// It returns an error for mutations on unknown fields.
	Apply(m ir.Mutation) (bool, error)
}

// ErrUnknownField is returned by Apply for mutations on absent fields.
type ErrUnknownField struct {
	FieldID string
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown field %q", e.FieldID)
}

// ChangeFunc observes applied mutations.
type ChangeFunc func(m ir.Mutation)

// Memory is an in-memory Registry safe for concurrent use.
// Renderers and tests use it directly; it also records the applied
// mutation log for inspection.
type Memory struct {
	mu       sync.RWMutex
	fields   []ir.Field
	state    ir.Snapshot
	applied  []ir.Mutation
	onChange []ChangeFunc
}

// NewMemory creates a registry from field definitions.
func NewMemory(fields []ir.Field) *Memory {
	form := ir.Form{Fields: fields}
	return &Memory{
		fields: slices.Clone(fields),
		state:  form.Snapshot(),
	}
}

// OnChange registers a callback invoked after each state-changing Apply.
// Callbacks run outside the registry lock.
func (r *Memory) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// Fields returns the field definitions in declaration order.
func (r *Memory) Fields() []ir.Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.fields)
}

// Value implements Registry.
func (r *Memory) Value(fieldID string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Value(fieldID)
}

// State returns a copy of one field's state.
func (r *Memory) State(fieldID string) (ir.FieldState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.state[fieldID]
	if !ok {
		return ir.FieldState{}, false
	}
	return st.Clone(), true
}

// Snapshot implements Registry.
func (r *Memory) Snapshot() ir.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// Set writes a user-driven value change. Callers then submit a change
// trigger to the engine.
func (r *Memory) Set(fieldID string, value any) error {
	_, err := r.Apply(ir.Mutation{
		TargetFieldID: fieldID,
		Kind:          ir.MutationValue,
		ActionType:    ir.ActionSetValue,
		Value:         value,
	})
	return err
}

// Apply implements Registry.
func (r *Memory) Apply(m ir.Mutation) (bool, error) {
	r.mu.Lock()
	if _, ok := r.state[m.TargetFieldID]; !ok {
		r.mu.Unlock()
		return false, &ErrUnknownField{FieldID: m.TargetFieldID}
	}
	changed := r.state.Apply(m)
	if changed {
		r.applied = append(r.applied, m)
	}
	callbacks := slices.Clone(r.onChange)
	r.mu.Unlock()

	if changed {
		for _, fn := range callbacks {
			fn(m)
		}
	}
	return changed, nil
}

// Applied returns every state-changing mutation in application order.
func (r *Memory) Applied() []ir.Mutation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.applied)
}
