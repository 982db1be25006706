package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"show_state", "priority_total", "mirror_cycle"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ShowState(t *testing.T) {
	result, err := Run(loadTestScenario(t, "show_state"))
	require.NoError(t, err)

	require.Len(t, result.Passes, 1)
	pass := result.Passes[0].Result
	assert.Equal(t, "pass-1", pass.PassID)
	assert.Equal(t, []string{"country"}, pass.Visited)
	assert.Equal(t, 0, pass.Levels)
	assert.True(t, result.Final["state"].Visible)
}

func TestRun_PriorityAndDelayedEvent(t *testing.T) {
	result, err := Run(loadTestScenario(t, "priority_total"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Passes, 2)
	first, second := result.Passes[0].Result, result.Passes[1].Result

	assert.Equal(t, ir.Trigger{FieldID: "qty", Kind: ir.TriggerChange}, first.Trigger)
	assert.Equal(t, []string{"qty", "total"}, first.Visited)
	assert.Equal(t, 1, first.Levels)
	require.Len(t, first.Events, 1)
	assert.Equal(t, 50, first.Events[0].Delay)

	// The delayed event re-enters as a fresh pass under the same step.
	assert.Equal(t, ir.Trigger{FieldID: "notify", Kind: ir.TriggerCustom, Name: "recalc"}, second.Trigger)
	assert.Equal(t, 0, result.Passes[1].Step)
	assert.Equal(t, "pass-2", second.PassID)
	assert.Greater(t, second.Seq, first.Seq)

	require.Len(t, result.Delivered, 1)
	assert.Equal(t, "recalc", result.Delivered[0].Name)
}

func TestRun_MirrorCycle(t *testing.T) {
	result, err := Run(loadTestScenario(t, "mirror_cycle"))
	require.NoError(t, err)

	require.Len(t, result.Passes, 1)
	pass := result.Passes[0].Result
	require.Len(t, pass.Mutations, 1)
	assert.Equal(t, "fieldY", pass.Mutations[0].TargetFieldID)

	var truncated []ir.Diagnostic
	for _, d := range pass.Diagnostics {
		if d.Code == ir.DiagCyclicPropagationTruncated {
			truncated = append(truncated, d)
		}
	}
	require.Len(t, truncated, 1)
	assert.Equal(t, []string{"fieldX"}, truncated[0].Fields)
}

func TestRun_FailingAssertionsAreCollected(t *testing.T) {
	s := loadTestScenario(t, "show_state")
	s.Assertions = append(s.Assertions,
		Assertion{Type: AssertFinalValue, Field: "country", Value: "CA"},
		Assertion{Type: AssertMutationAbsent, Dependency: "show-state"},
	)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "final_value")
	assert.Contains(t, result.Errors[1], "mutation_absent")
}

func TestRun_InitialValues(t *testing.T) {
	s := loadTestScenario(t, "show_state")
	s.Values = map[string]any{"qty": 0}
	s.Assertions = append(s.Assertions, Assertion{Type: AssertFinalValue, Field: "qty", Value: 0})

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MultipleStepsKeepOrder(t *testing.T) {
	s := loadTestScenario(t, "show_state")
	s.Steps = append(s.Steps, Step{
		Set:     map[string]any{"country": "CA"},
		Trigger: TriggerSpec{Field: "country"},
	})
	one := 1
	s.Assertions = []Assertion{
		{Type: AssertMutationContains, Step: &one, Dependency: "hide-state"},
		{Type: AssertFinalState, Field: "state", Expect: map[string]any{"visible": false}},
	}
	s.Properties = []string{PropertyIdempotent}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Passes, 2)
	assert.Equal(t, 1, result.Passes[1].Step)
}

func TestRun_UnknownTriggerFieldIsDiagnostic(t *testing.T) {
	s := loadTestScenario(t, "show_state")
	s.Steps = []Step{{Trigger: TriggerSpec{Field: "nowhere"}}}
	s.Assertions = []Assertion{{Type: AssertDiagnosticContains, Code: string(ir.DiagMissingFieldReference), Fields: []string{"nowhere"}}}
	s.Properties = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidForm(t *testing.T) {
	path := writeForm(t, `
fields:
  - { id: a, type: text }
dependencies:
  - id: d1
    sourceFieldId: a
    targetFieldId: ghost
    actions: [{ type: show }]
`)
	s := &Scenario{
		Name:       "invalid",
		Form:       path,
		Steps:      []Step{{Trigger: TriggerSpec{Field: "a"}}},
		Properties: []string{PropertyBounded},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
}

func TestVirtualTimer_FiresInDelayOrder(t *testing.T) {
	var (
		v     virtualTimer
		order []string
	)
	v.AfterFunc(30*time.Millisecond, func() { order = append(order, "slow") })
	v.AfterFunc(10*time.Millisecond, func() { order = append(order, "fast") })
	v.AfterFunc(30*time.Millisecond, func() { order = append(order, "slow-2") })

	assert.True(t, v.fire())
	assert.Equal(t, []string{"fast", "slow", "slow-2"}, order)
	assert.False(t, v.fire())
}
