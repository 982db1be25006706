package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func TestEval_RevealsField(t *testing.T) {
	form := writeForm(t, shippingForm)

	out, err := execute(t, nil, "--format", "json", "eval", form, "--field", "country", "--set", "country=US")
	require.NoError(t, err)

	var result EvalResult
	decodeData(t, out, &result)
	require.Len(t, result.Passes, 1)
	pass := result.Passes[0]
	assert.Equal(t, int64(1), pass.Seq)
	assert.NotEmpty(t, pass.PassID)
	assert.Equal(t, ir.TriggerChange, pass.Trigger.Kind)
	require.Len(t, pass.Mutations, 1)
	assert.Equal(t, "state", pass.Mutations[0].TargetFieldID)
	assert.Equal(t, ir.MutationVisibility, pass.Mutations[0].Kind)

	assert.True(t, result.Final["state"].Visible)
	assert.Equal(t, "US", result.Final["country"].Value)
	assert.Empty(t, result.Delivered)
}

func TestEval_Text(t *testing.T) {
	form := writeForm(t, shippingForm)

	out, err := execute(t, nil, "eval", form, "--field", "country", "--set", "country=US")
	require.NoError(t, err)

	assert.Contains(t, out, "(seq 1): change on country, ")
	assert.Contains(t, out, "  state.visibility <- true (show-state)")
}

func TestEval_ImmediateEventRunsFollowUpPass(t *testing.T) {
	form := writeForm(t, shippingForm)

	out, err := execute(t, nil, "--format", "json", "eval", form, "--field", "qty", "--set", "qty=3")
	require.NoError(t, err)

	var result EvalResult
	decodeData(t, out, &result)
	require.Len(t, result.Passes, 2)
	require.Len(t, result.Delivered, 1)
	assert.Equal(t, "recalc", result.Delivered[0].Name)

	first, second := result.Passes[0], result.Passes[1]
	require.Len(t, first.Events, 1)
	assert.Equal(t, float64(8), result.Final["total"].Value)

	assert.Equal(t, ir.TriggerCustom, second.Trigger.Kind)
	assert.Equal(t, "recalc", second.Trigger.Name)
	assert.Equal(t, "notify", second.Trigger.FieldID)
	assert.Equal(t, first.Seq+1, second.Seq)
	assert.Contains(t, result.Final["notify"].Classes, "recalculated")
}

func TestEval_CustomTrigger(t *testing.T) {
	form := writeForm(t, shippingForm)

	out, err := execute(t, nil, "eval", form, "--field", "notify", "--kind", "custom", "--name", "recalc")
	require.NoError(t, err)

	assert.Contains(t, out, "custom on notify [recalc]")
	assert.Contains(t, out, "  notify.class <- recalculated=true (on-recalc)")
}

func TestEval_DatabaseResumesSequence(t *testing.T) {
	form := writeForm(t, shippingForm)
	db := filepath.Join(t.TempDir(), "formdeps.db")

	for range 2 {
		_, err := execute(t, nil, "eval", form, "--field", "country", "--set", "country=US", "--db", db)
		require.NoError(t, err)
	}

	out, err := execute(t, nil, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var history HistoryResult
	decodeData(t, out, &history)
	require.Len(t, history.Passes, 2)
	assert.Equal(t, int64(1), history.Passes[0].Seq)
	assert.Equal(t, int64(2), history.Passes[1].Seq)
	assert.NotEqual(t, history.Passes[0].PassID, history.Passes[1].PassID)
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown set field", []string{"--field", "country", "--set", "zip=9"}, ErrCodeUnknownField},
		{"unknown trigger field", []string{"--field", "zip"}, ErrCodeUnknownField},
		{"malformed set", []string{"--field", "country", "--set", "country"}, ErrCodeInvalidFlag},
		{"bad kind", []string{"--field", "country", "--kind", "hover"}, ErrCodeInvalidFlag},
		{"custom without name", []string{"--field", "notify", "--kind", "custom"}, ErrCodeInvalidFlag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "eval", writeForm(t, shippingForm)}, tt.args...)

			out, err := execute(t, nil, args...)

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestEval_FieldRequired(t *testing.T) {
	_, err := execute(t, nil, "eval", writeForm(t, shippingForm))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "field" not set`)
}
