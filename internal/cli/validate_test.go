package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/compiler"
)

func TestValidate_ValidForm(t *testing.T) {
	out, err := execute(t, nil, "validate", writeForm(t, shippingForm))

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Form valid (5 fields, 4 dependencies)")
}

func TestValidate_ValidFormJSON(t *testing.T) {
	out, err := execute(t, nil, "--format", "json", "validate", writeForm(t, shippingForm))
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.Fields)
	assert.Equal(t, 4, result.Deps)
	assert.Empty(t, result.Errors)
}

func TestValidate_CycleIsWarning(t *testing.T) {
	out, err := execute(t, nil, "--format", "json", "validate", writeForm(t, mirrorForm))
	require.NoError(t, err, "cycles do not fail validation")

	var result ValidationResult
	decodeData(t, out, &result)
	assert.True(t, result.Valid)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, compiler.WarnCycle, result.Warnings[0].Code)
}

func TestValidate_InvalidForm(t *testing.T) {
	out, err := execute(t, nil, "validate", writeForm(t, brokenForm))

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownTargetField)
	assert.Contains(t, out, "line ")
}

func TestValidate_InvalidFormJSON(t *testing.T) {
	out, err := execute(t, nil, "--format", "json", "validate", writeForm(t, brokenForm))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownTargetField, resp.Error.Code)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "dependencies[0].targetFieldId", result.Errors[0].Field)
}

func TestValidate_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		code string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			code: ErrCodeNotFound,
		},
		{
			name: "unknown key",
			path: func(t *testing.T) string { return writeForm(t, "name: x\nfeilds: []\n") },
			code: ErrCodeLoadFailed,
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string { return writeFile(t, t.TempDir(), "form.json", "{}") },
			code: ErrCodeLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, nil, "--format", "json", "validate", tt.path(t))

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestValidate_CUEDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "form.cue", `package shipping

name: "shipping"

field: country: {type: "select", value: "CA"}
field: state: {type: "select", hidden: true}

dependency: "show-state": {
	sourceFieldId: "country"
	targetFieldId: "state"
	conditions: [{operator: "equals", value: "US"}]
	actions: [{type: "show"}]
}
`)

	out, err := execute(t, nil, "validate", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Form valid (2 fields, 1 dependencies)")
}
