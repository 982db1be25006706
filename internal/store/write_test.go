package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func samplePass(id string, seq int64, field string) ir.Result {
	return ir.Result{
		PassID:       id,
		Seq:          seq,
		SnapshotHash: "hash-" + id,
		Trigger:      ir.Trigger{FieldID: field, Kind: ir.TriggerChange},
		Mutations: []ir.Mutation{
			{
				DependencyID:  "promo-total",
				ActionID:      "a1",
				ActionType:    ir.ActionSetValue,
				Priority:      10,
				Order:         3,
				TargetFieldID: "total",
				Kind:          ir.MutationValue,
				Value:         float64(8),
			},
			{
				DependencyID:  "restyle",
				ActionType:    ir.ActionSetStyle,
				TargetFieldID: "total",
				Kind:          ir.MutationStyle,
				Style:         map[string]string{"color": "red"},
			},
		},
		Events: []ir.Event{
			{DependencyID: "ping", ActionID: "a1", Name: "recalc", SourceFieldID: field, TargetFieldID: "notify", Delay: 50},
		},
		Diagnostics: []ir.Diagnostic{ir.CyclicTruncated([]string{"total"})},
		Visited:     []string{field, "total"},
		Levels:      1,
	}
}

func TestWritePass_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := samplePass("pass-1", 1, "qty")

	require.NoError(t, s.WritePass(ctx, want))

	got, err := s.ReadPass(ctx, "pass-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWritePass_Empty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := ir.Result{PassID: "pass-1", Seq: 1, Trigger: ir.Trigger{FieldID: "a", Kind: ir.TriggerBlur}}

	require.NoError(t, s.WritePass(ctx, res))

	got, err := s.ReadPass(ctx, "pass-1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Mutation{}, got.Mutations)
	assert.Equal(t, []string{}, got.Visited)
	assert.Nil(t, got.Events)
	assert.Nil(t, got.Diagnostics)
	assert.Equal(t, ir.TriggerBlur, got.Trigger.Kind)
}

func TestWritePass_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	first := samplePass("pass-1", 1, "qty")

	require.NoError(t, s.WritePass(ctx, first))

	second := samplePass("pass-1", 9, "country")
	second.Mutations = nil
	require.NoError(t, s.WritePass(ctx, second))

	got, err := s.ReadPass(ctx, "pass-1")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestWritePass_RequiresID(t *testing.T) {
	s := createTestStore(t)

	err := s.WritePass(context.Background(), ir.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass id is required")
}

func TestWritePass_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.WritePass(ctx, samplePass("pass-1", 1, "qty")))
}

func TestWriteTestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.WriteTestRun(ctx, TestRun{
		DependencyID:  "show-state",
		Result:        ir.TestPass,
		ConditionsMet: true,
		TestedAt:      at,
		Diff: []ir.Mutation{
			{DependencyID: "show-state", ActionType: ir.ActionShow, TargetFieldID: "state", Kind: ir.MutationVisibility, Flag: true},
		},
	})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	runs, err := s.ReadTestRuns(ctx, "show-state", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, ir.TestPass, runs[0].Result)
	assert.True(t, runs[0].ConditionsMet)
	assert.True(t, at.Equal(runs[0].TestedAt))
	require.Len(t, runs[0].Diff, 1)
	assert.True(t, runs[0].Diff[0].Flag)
	assert.Empty(t, runs[0].Diagnostics)
}

func TestWriteTestRun_RequiresDependency(t *testing.T) {
	s := createTestStore(t)

	_, err := s.WriteTestRun(context.Background(), TestRun{Result: ir.TestFail})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency id is required")
}
