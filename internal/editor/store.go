// Package editor is the presentation-state store behind a dependency
// editing UI.
//
// It owns the dependency list being edited and UI-only state (which rows
// are expanded, which one is being renamed). Every structural edit
// validates the list against the form's fields and rebuilds the graph; the
// engine never sees presentation state.
package editor

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/formdeps/internal/compiler"
	"github.com/roach88/formdeps/internal/graph"
	"github.com/roach88/formdeps/internal/harness"
	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/logging"
)

// Rebuilder receives the dependency list after each edit.
// *engine.Engine satisfies it.
type Rebuilder interface {
	Rebuild(deps []ir.FieldDependency) *graph.Graph
}

// NotFoundError is returned when an edit names an unknown dependency.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dependency %q not found", e.ID)
}

// InvalidError is returned when an edit would leave the list invalid.
// The store is unchanged.
type InvalidError struct {
	Errors []compiler.ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return "invalid dependency: " + strings.Join(msgs, "; ")
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	fields   []ir.Field
	deps     []ir.FieldDependency
	graph    *graph.Graph
	expanded map[string]bool
	renaming string

	rebuilder Rebuilder
	tester    *harness.Tester
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRebuilder forwards every rebuilt list, typically to a live engine.
func WithRebuilder(r Rebuilder) Option {
	return func(s *Store) { s.rebuilder = r }
}

// WithTester replaces the tester used by RunTest.
func WithTester(t *harness.Tester) Option {
	return func(s *Store) { s.tester = t }
}

// WithIDGenerator replaces the generator for dependencies created without
// an id.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store over the form's fields and an initial dependency list.
// The initial list is taken as is; only later edits are validated.
func New(fields []ir.Field, deps []ir.FieldDependency, opts ...Option) *Store {
	s := &Store{
		fields:   slices.Clone(fields),
		deps:     cloneAll(deps),
		expanded: make(map[string]bool),
		tester:   harness.NewTester(),
		newID:    func() string { return "dep-" + uuid.Must(uuid.NewV7()).String() },
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.graph = graph.Build(s.deps)
	return s
}

// Dependencies returns a copy of the list in declaration order.
func (s *Store) Dependencies() []ir.FieldDependency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.deps)
}

// Get returns a copy of one dependency.
func (s *Store) Get(id string) (ir.FieldDependency, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ir.FieldDependency{}, false
	}
	return clone(s.deps[i]), true
}

// Graph returns the graph built from the current list.
func (s *Store) Graph() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Warnings returns the cycle warnings of the current graph.
func (s *Store) Warnings() []compiler.Warning {
	return compiler.AnalyzeCycles(s.Graph())
}

// Create appends dep. A blank id is generated, a blank trigger defaults to
// change and a new dependency starts enabled. Returns the stored copy.
func (s *Store) Create(dep ir.FieldDependency) (ir.FieldDependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dep = clone(dep)
	if dep.ID == "" {
		dep.ID = s.newID()
	}
	if dep.Trigger == "" {
		dep.Trigger = ir.TriggerChange
	}
	dep.Enabled = true

	next := append(cloneAll(s.deps), dep)
	if err := s.commit(next); err != nil {
		return ir.FieldDependency{}, err
	}
	s.logger.Info("dependency created", "dependency", dep.ID, "source", dep.SourceFieldID, "target", dep.TargetFieldID)
	return clone(dep), nil
}

// Update replaces the dependency with dep.ID, keeping its position and its
// test results.
func (s *Store) Update(dep ir.FieldDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(dep.ID)
	if i < 0 {
		return &NotFoundError{ID: dep.ID}
	}
	dep = clone(dep)
	if dep.LastTested == nil {
		dep.LastTested = s.deps[i].LastTested
		dep.TestResult = s.deps[i].TestResult
	}

	next := cloneAll(s.deps)
	next[i] = dep
	if err := s.commit(next); err != nil {
		return err
	}
	s.logger.Info("dependency updated", "dependency", dep.ID)
	return nil
}

// Delete removes a dependency and its presentation state.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	next := slices.Delete(cloneAll(s.deps), i, i+1)
	if err := s.commit(next); err != nil {
		return err
	}
	delete(s.expanded, id)
	if s.renaming == id {
		s.renaming = ""
	}
	s.logger.Info("dependency deleted", "dependency", id)
	return nil
}

// SetEnabled enables or disables a dependency.
func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	if s.deps[i].Enabled == enabled {
		return nil
	}
	next := cloneAll(s.deps)
	next[i].Enabled = enabled
	if err := s.commit(next); err != nil {
		return err
	}
	s.logger.Info("dependency toggled", "dependency", id, "enabled", enabled)
	return nil
}

// Move changes a dependency's declaration position, which decides
// equal-priority conflicts.
func (s *Store) Move(id string, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	if to < 0 || to >= len(s.deps) {
		return fmt.Errorf("position %d out of range (0..%d)", to, len(s.deps)-1)
	}
	next := cloneAll(s.deps)
	dep := next[i]
	next = slices.Delete(next, i, i+1)
	next = slices.Insert(next, to, dep)
	return s.commit(next)
}

// commit validates next against the fields and swaps it in.
// Caller holds s.mu.
func (s *Store) commit(next []ir.FieldDependency) error {
	form := &ir.Form{Fields: s.fields, Dependencies: next}
	if errs := compiler.Validate(form); len(errs) > 0 {
		return &InvalidError{Errors: errs}
	}

	s.deps = next
	if s.rebuilder != nil {
		s.graph = s.rebuilder.Rebuild(cloneAll(next))
	} else {
		s.graph = graph.Build(next)
	}
	return nil
}

// RunTest tests one dependency against snap and stores the outcome on it.
// Disabled dependencies can be tested. The graph is left alone: test
// results never change evaluation.
func (s *Store) RunTest(id string, snap ir.Snapshot) (harness.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return harness.Report{}, &NotFoundError{ID: id}
	}
	rep := s.tester.Test(&s.deps[i], snap)
	s.logger.Debug("dependency tested", "dependency", id, "result", rep.Result)
	return rep, nil
}

// RunAllTests tests every dependency independently.
func (s *Store) RunAllTests(snap ir.Snapshot) []harness.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tester.TestAll(s.deps, snap)
}

// indexOf returns the position of id or -1. Caller holds s.mu.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.deps, func(d ir.FieldDependency) bool { return d.ID == id })
}

func clone(d ir.FieldDependency) ir.FieldDependency {
	out := d
	out.Conditions = slices.Clone(d.Conditions)
	out.Actions = make([]ir.DependencyAction, len(d.Actions))
	for i, a := range d.Actions {
		a.Options = slices.Clone(a.Options)
		if a.Style != nil {
			style := make(map[string]string, len(a.Style))
			for k, v := range a.Style {
				style[k] = v
			}
			a.Style = style
		}
		out.Actions[i] = a
	}
	if d.Actions == nil {
		out.Actions = nil
	}
	if d.LastTested != nil {
		t := *d.LastTested
		out.LastTested = &t
	}
	return out
}

func cloneAll(deps []ir.FieldDependency) []ir.FieldDependency {
	if deps == nil {
		return nil
	}
	out := make([]ir.FieldDependency, len(deps))
	for i, d := range deps {
		out[i] = clone(d)
	}
	return out
}
