package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/harness"
)

const revealScenario = `name: reveal_state
description: "US reveals state"
form: ../forms/shipping.yaml
steps:
  - set: { country: US }
    trigger: { field: country }
assertions:
  - type: mutation_contains
    field: state
    kind: visibility
    dependency: show-state
    flag: true
  - type: final_state
    field: state
    expect: { visible: true }
properties: [idempotent, bounded]
`

const wrongTotalScenario = `name: wrong_total
description: "Asserts a total the promotion never sets"
form: ../forms/shipping.yaml
steps:
  - set: { qty: 2 }
    trigger: { field: qty }
assertions:
  - type: final_value
    field: total
    value: 99
`

// scenarioDir lays out forms/ and scenarios/ side by side and returns the
// scenarios directory.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, filepath.Join("forms", "shipping.yaml"), shippingForm)
	dir := filepath.Join(root, "scenarios")
	for name, content := range scenarios {
		writeFile(t, dir, name, content)
	}
	return dir
}

func TestScenario_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"reveal.yaml": revealScenario})

	out, err := execute(t, nil, "scenario", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "Results: 1 passed, 0 failed, 1 total")
}

func TestScenario_Failure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"reveal.yaml": revealScenario,
		"wrong.yaml":  wrongTotalScenario,
	})

	out, err := execute(t, nil, "scenario", dir)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_total")
	assert.Contains(t, out, "Results: 1 passed, 1 failed, 2 total")
}

func TestScenario_FailureJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"wrong.yaml": wrongTotalScenario})

	out, err := execute(t, nil, "--format", "json", "scenario", dir)
	require.Error(t, err)

	var suite harness.SuiteResult
	resp := decodeData(t, out, &suite)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "wrong_total", suite.Failures[0].Scenario)
	assert.NotEmpty(t, suite.Failures[0].Errors)
}

func TestScenario_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"reveal.yaml": revealScenario,
		"wrong.yaml":  wrongTotalScenario,
	})

	out, err := execute(t, nil, "scenario", dir, "--filter", "reveal_*")

	require.NoError(t, err)
	assert.Contains(t, out, "Results: 1 passed, 0 failed, 1 total")
}

func TestScenario_Empty(t *testing.T) {
	out, err := execute(t, nil, "scenario", t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestScenario_CommandErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, nil, "scenario", filepath.Join(t.TempDir(), "nope"))
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("bad filter", func(t *testing.T) {
		dir := scenarioDir(t, map[string]string{"reveal.yaml": revealScenario})
		_, err := execute(t, nil, "scenario", dir, "--filter", "[")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
