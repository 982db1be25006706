package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func dep(id, source, target string, enabled bool) ir.FieldDependency {
	return ir.FieldDependency{
		ID:            id,
		Enabled:       enabled,
		SourceFieldID: source,
		TargetFieldID: target,
		Trigger:       ir.TriggerChange,
		Actions:       []ir.DependencyAction{{ID: id + "-a", Type: ir.ActionShow}},
	}
}

func TestBuild_Empty(t *testing.T) {
	g := Build(nil)
	assert.False(t, g.HasCycles())
	assert.Empty(t, g.Cycles())
	assert.Empty(t, g.Outgoing("any"))
}

func TestBuild_Adjacency(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("d1", "country", "state", true),
		dep("d2", "country", "zip", true),
		dep("d3", "state", "zip", false),
	})

	out := g.Outgoing("country")
	require.Len(t, out, 2)
	assert.Equal(t, "d1", out[0].Dependency.ID)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, "d2", out[1].Dependency.ID)

	in := g.Incoming("zip")
	require.Len(t, in, 2)
	assert.False(t, in[0].Disabled)
	assert.True(t, in[1].Disabled, "disabled dependency kept in adjacency with flag")

	assert.Equal(t, []string{"country", "state"}, g.Sources())

	idx, ok := g.IndexOf("d3")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestBuild_DAGHasNoCycles(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("d1", "a", "b", true),
		dep("d2", "b", "c", true),
		dep("d3", "a", "c", true),
	})
	assert.False(t, g.HasCycles())
}

func TestBuild_TwoNodeCycle(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("x-to-y", "fieldX", "fieldY", true),
		dep("y-to-x", "fieldY", "fieldX", true),
	})

	require.True(t, g.HasCycles())
	require.Len(t, g.Cycles(), 1)
	c := g.Cycles()[0]
	assert.Equal(t, []string{"fieldX", "fieldY", "fieldX"}, c.Fields)
	assert.Equal(t, []string{"x-to-y", "y-to-x"}, c.Dependencies)
	assert.Contains(t, c.Message, "fieldX → fieldY → fieldX")
	assert.Equal(t, []string{"x-to-y", "y-to-x"}, g.CyclicDependencyIDs())
}

func TestBuild_SelfLoop(t *testing.T) {
	g := Build([]ir.FieldDependency{dep("self", "a", "a", true)})

	require.True(t, g.HasCycles())
	c := g.Cycles()[0]
	assert.Equal(t, []string{"a", "a"}, c.Fields)
	assert.Contains(t, c.Message, "Self-referencing")
}

func TestBuild_DisabledEdgeBreaksCycle(t *testing.T) {
	deps := []ir.FieldDependency{
		dep("x-to-y", "x", "y", true),
		dep("y-to-x", "y", "x", false),
	}
	assert.False(t, Build(deps).HasCycles())

	// Enabling at runtime requires a rebuild, which finds the cycle
	deps[1].Enabled = true
	assert.True(t, Build(deps).HasCycles())
}

func TestBuild_ThreeNodeCycle(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("ab", "a", "b", true),
		dep("bc", "b", "c", true),
		dep("ca", "c", "a", true),
		dep("cd", "c", "d", true),
	})

	require.Len(t, g.Cycles(), 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, g.Cycles()[0].Fields)
	assert.Equal(t, []string{"ab", "bc", "ca"}, g.Cycles()[0].Dependencies)
}

func TestBuild_OverlappingCyclesReportEveryCyclicDependency(t *testing.T) {
	// a -> c -> a closes through c, which the depth-first walk has already
	// finished by the time ac is examined
	g := Build([]ir.FieldDependency{
		dep("ab", "a", "b", true),
		dep("bc", "b", "c", true),
		dep("ca", "c", "a", true),
		dep("ac", "a", "c", true),
		dep("cd", "c", "d", true),
		dep("off", "d", "a", false),
	})

	assert.Equal(t, []string{"ab", "ac", "bc", "ca"}, g.CyclicDependencyIDs())
	assert.NotEmpty(t, g.Cycles())
}

func TestBuild_SelfLoopIsCyclic(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("self", "n", "n", true),
		dep("out", "n", "m", true),
	})

	assert.Equal(t, []string{"self"}, g.CyclicDependencyIDs())
}

func TestBuild_CopiesInput(t *testing.T) {
	deps := []ir.FieldDependency{dep("d1", "a", "b", true)}
	g := Build(deps)

	deps[0].SourceFieldID = "changed"
	assert.Equal(t, "a", g.Dependencies()[0].SourceFieldID)
	assert.Len(t, g.Outgoing("a"), 1)
}

func TestAnnotate(t *testing.T) {
	g := Build([]ir.FieldDependency{
		dep("d1", "country", "state", true),
		dep("d2", "country", "zip", true),
		dep("d3", "state", "zip", false),
	})

	fields := g.Annotate([]ir.Field{{ID: "country"}, {ID: "state"}, {ID: "zip"}})

	assert.Equal(t, []string{"state", "zip"}, fields[0].Dependents)
	assert.Empty(t, fields[0].Dependencies)
	assert.Equal(t, []string{"country"}, fields[1].Dependencies)
	assert.Equal(t, []string{"zip"}, fields[1].Dependents)
	assert.Equal(t, []string{"country", "state"}, fields[2].Dependencies)
}
