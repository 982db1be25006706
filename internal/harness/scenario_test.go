package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func checkoutFormPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "forms", "checkout.yaml"))
	require.NoError(t, err)
	return p
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "show_state.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "show_state", s.Name)
	assert.Equal(t, filepath.Join("testdata", "forms", "checkout.yaml"), s.Form)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, ir.Trigger{FieldID: "country", Kind: ir.TriggerChange}, s.Steps[0].Trigger.Trigger())
	assert.Equal(t, "US", s.Steps[0].Set["country"])
	require.Len(t, s.Assertions, 4)
	require.NotNil(t, s.Assertions[0].Flag)
	assert.True(t, *s.Assertions[0].Flag)
	assert.Equal(t, []string{PropertyIdempotent, PropertyBounded}, s.Properties)
}

func TestLoadScenario_CustomTrigger(t *testing.T) {
	path := writeScenario(t, `
name: custom
description: custom trigger
form: `+checkoutFormPath(t)+`
steps:
  - trigger: { field: notify, kind: custom, name: recalc }
assertions:
  - type: final_state
    field: notify
    expect: { classes: [recalculated] }
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, ir.Trigger{FieldID: "notify", Kind: ir.TriggerCustom, Name: "recalc"}, s.Steps[0].Trigger.Trigger())
}

func TestLoadScenario_UnknownKey(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled key
form: `+checkoutFormPath(t)+`
steps:
  - trigger: { field: country }
assertion:
  - type: final_value
    field: country
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	form := checkoutFormPath(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no name",
			body: "description: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nproperties: [bounded]\n",
			want: "name is required",
		},
		{
			name: "no description",
			body: "name: n\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nproperties: [bounded]\n",
			want: "description is required",
		},
		{
			name: "no form",
			body: "name: n\ndescription: d\nsteps: [{trigger: {field: country}}]\nproperties: [bounded]\n",
			want: "form is required",
		},
		{
			name: "form not found",
			body: "name: n\ndescription: d\nform: missing.yaml\nsteps: [{trigger: {field: country}}]\nproperties: [bounded]\n",
			want: "form not found",
		},
		{
			name: "no steps",
			body: "name: n\ndescription: d\nform: " + form + "\nproperties: [bounded]\n",
			want: "steps list is required",
		},
		{
			name: "nothing checked",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\n",
			want: "at least one assertion or property",
		},
		{
			name: "trigger without field",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {kind: change}}]\nproperties: [bounded]\n",
			want: "steps[0].trigger: field is required",
		},
		{
			name: "bad trigger kind",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country, kind: hover}}]\nproperties: [bounded]\n",
			want: `invalid kind "hover"`,
		},
		{
			name: "unknown property",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nproperties: [fast]\n",
			want: `unknown property "fast"`,
		},
		{
			name: "unknown assertion type",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: mutation_maybe}]\n",
			want: `unknown assertion type "mutation_maybe"`,
		},
		{
			name: "step out of range",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: mutation_count, step: 1}]\n",
			want: "step 1 out of range",
		},
		{
			name: "unknown kind",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: mutation_count, kind: colour}]\n",
			want: `unknown mutation kind "colour"`,
		},
		{
			name: "contains without filter",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: mutation_contains}]\n",
			want: "field or dependency is required",
		},
		{
			name: "diagnostic without code",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: diagnostic_contains}]\n",
			want: "code is required",
		},
		{
			name: "event without name",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: event_contains}]\n",
			want: "event is required",
		},
		{
			name: "final state without expect",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: final_state, field: state}]\n",
			want: "expect is required",
		},
		{
			name: "final state unknown member",
			body: "name: n\ndescription: d\nform: " + form + "\nsteps: [{trigger: {field: country}}]\nassertions: [{type: final_state, field: state, expect: {colour: red}}]\n",
			want: `unknown state member "colour"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"mirror_cycle", "priority_total", "show_state"}, names)
}

func writeForm(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
