// Package graph builds the dependency graph used by the evaluation engine.
//
// Every dependency is an edge source -> target. Disabled dependencies stay in
// the adjacency maps (with Disabled set) so enabling one only requires a
// rebuild, but they are excluded from cycle analysis because they cannot
// propagate.
//
// Cycles are diagnostics, not errors: they may be intentional (two fields
// mirroring each other). The engine's visited-set bounds propagation at
// runtime regardless of what the static analysis finds.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formdeps/internal/ir"
)

// Edge is one dependency in the adjacency structure.
type Edge struct {
	Dependency *ir.FieldDependency
	Index      int  // position in the declaration list
	Disabled   bool // excluded from propagation and cycle analysis
}

// Cycle is a closed path of enabled dependencies.
type Cycle struct {
	Fields       []string `json:"fields"`       // ["a", "b", "a"]
	Dependencies []string `json:"dependencies"` // dependency ids along the path
	Message      string   `json:"message"`
}

// Graph is the derived adjacency structure for one dependency snapshot.
// It is immutable after Build; rebuild it when the dependency list changes.
type Graph struct {
	deps     []ir.FieldDependency
	bySource map[string][]Edge
	byTarget map[string][]Edge
	index    map[string]int
	cycles   []Cycle
	cyclic   []string // sorted ids of enabled dependencies inside a cycle
}

// Build converts a flat dependency list into adjacency maps keyed by source
// and by target, and runs cycle detection over the enabled edges.
//
// The list is copied so later edits by the caller cannot change the
// declaration order the engine relies on for tie-breaking.
func Build(deps []ir.FieldDependency) *Graph {
	g := &Graph{
		deps:     slices.Clone(deps),
		bySource: make(map[string][]Edge),
		byTarget: make(map[string][]Edge),
		index:    make(map[string]int, len(deps)),
	}

	for i := range g.deps {
		dep := &g.deps[i]
		edge := Edge{Dependency: dep, Index: i, Disabled: !dep.Enabled}
		g.bySource[dep.SourceFieldID] = append(g.bySource[dep.SourceFieldID], edge)
		g.byTarget[dep.TargetFieldID] = append(g.byTarget[dep.TargetFieldID], edge)
		if _, dup := g.index[dep.ID]; !dup {
			g.index[dep.ID] = i
		}
	}

	g.cycles = detectCycles(g)
	g.cyclic = cyclicDependencies(g)
	return g
}

// Dependencies returns the dependency list in declaration order.
func (g *Graph) Dependencies() []ir.FieldDependency {
	return g.deps
}

// Outgoing returns every edge whose source is fieldID, in declaration order,
// including disabled ones.
func (g *Graph) Outgoing(fieldID string) []Edge {
	return g.bySource[fieldID]
}

// Incoming returns every edge whose target is fieldID, in declaration order.
func (g *Graph) Incoming(fieldID string) []Edge {
	return g.byTarget[fieldID]
}

// Sources returns all source field ids in sorted order.
func (g *Graph) Sources() []string {
	keys := make([]string, 0, len(g.bySource))
	for k := range g.bySource {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IndexOf returns the declaration index of a dependency id.
func (g *Graph) IndexOf(depID string) (int, bool) {
	i, ok := g.index[depID]
	return i, ok
}

// HasCycles reports whether any enabled cycle exists.
func (g *Graph) HasCycles() bool {
	return len(g.cycles) > 0
}

// Cycles returns the detected cycles.
func (g *Graph) Cycles() []Cycle {
	return g.cycles
}

// CyclicDependencyIDs returns the sorted, de-duplicated ids of every
// enabled dependency that lies on some cycle. Cycles() reports one closing
// path per back-edge and can miss edges shared by overlapping cycles; this
// list does not.
func (g *Graph) CyclicDependencyIDs() []string {
	return slices.Clone(g.cyclic)
}

// Annotate returns a copy of fields with Dependencies (source fields that
// drive it) and Dependents (fields it drives) recomputed from the graph.
// Disabled dependencies are included; they are still declared.
func (g *Graph) Annotate(fields []ir.Field) []ir.Field {
	out := slices.Clone(fields)
	for i := range out {
		id := out[i].ID
		out[i].Dependencies = uniqueFields(g.byTarget[id], func(e Edge) string { return e.Dependency.SourceFieldID })
		out[i].Dependents = uniqueFields(g.bySource[id], func(e Edge) string { return e.Dependency.TargetFieldID })
	}
	return out
}

func uniqueFields(edges []Edge, pick func(Edge) string) []string {
	if len(edges) == 0 {
		return nil
	}
	var ids []string
	for _, e := range edges {
		id := pick(e)
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// detectCycles runs depth-first search with a recursion stack over enabled
// edges. Every back-edge closes one cycle, reported with the field path and
// the dependencies along it.
func detectCycles(g *Graph) []Cycle {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int)
	var (
		stackFields []string
		stackDeps   []string
		cycles      []Cycle
	)

	var visit func(field string)
	visit = func(field string) {
		color[field] = grey
		stackFields = append(stackFields, field)

		for _, e := range g.bySource[field] {
			if e.Disabled {
				continue
			}
			next := e.Dependency.TargetFieldID
			switch color[next] {
			case white:
				stackDeps = append(stackDeps, e.Dependency.ID)
				visit(next)
				stackDeps = stackDeps[:len(stackDeps)-1]
			case grey:
				cycles = append(cycles, newCycle(stackFields, stackDeps, next, e.Dependency.ID))
			}
		}

		stackFields = stackFields[:len(stackFields)-1]
		color[field] = black
	}

	// Visit in declaration order for deterministic output
	for i := range g.deps {
		src := g.deps[i].SourceFieldID
		if color[src] == white {
			visit(src)
		}
	}

	return cycles
}

// newCycle slices the recursion stack from the re-entered field to the top.
func newCycle(stackFields, stackDeps []string, reentered, closingDep string) Cycle {
	start := slices.Index(stackFields, reentered)
	fields := append(slices.Clone(stackFields[start:]), reentered)
	deps := append(slices.Clone(stackDeps[start:]), closingDep)

	msg := fmt.Sprintf("Potential cycle detected: %s", strings.Join(fields, " → "))
	if len(fields) == 2 {
		msg = fmt.Sprintf("Self-referencing dependency detected: %s → %s", reentered, reentered)
	}
	return Cycle{Fields: fields, Dependencies: deps, Message: msg}
}

// cyclicDependencies finds strongly connected components over enabled
// edges (Tarjan). An edge is cyclic when both ends share a component of
// more than one field, or when it is a self-loop.
func cyclicDependencies(g *Graph) []string {
	var (
		next    int
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		comp    = make(map[string]int)
		size    []int
	)

	var connect func(field string)
	connect = func(field string) {
		index[field] = next
		low[field] = next
		next++
		stack = append(stack, field)
		onStack[field] = true

		for _, e := range g.bySource[field] {
			if e.Disabled {
				continue
			}
			to := e.Dependency.TargetFieldID
			if _, seen := index[to]; !seen {
				connect(to)
				low[field] = min(low[field], low[to])
			} else if onStack[to] {
				low[field] = min(low[field], index[to])
			}
		}

		if low[field] != index[field] {
			return
		}
		id := len(size)
		n := 0
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			comp[top] = id
			n++
			if top == field {
				break
			}
		}
		size = append(size, n)
	}

	for i := range g.deps {
		if _, seen := index[g.deps[i].SourceFieldID]; !seen {
			connect(g.deps[i].SourceFieldID)
		}
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range g.deps {
		dep := &g.deps[i]
		if !dep.Enabled || seen[dep.ID] {
			continue
		}
		src, dst := dep.SourceFieldID, dep.TargetFieldID
		if src == dst || (comp[src] == comp[dst] && size[comp[src]] > 1) {
			seen[dep.ID] = true
			ids = append(ids, dep.ID)
		}
	}
	slices.Sort(ids)
	return ids
}
