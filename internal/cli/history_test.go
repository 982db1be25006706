package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/store"
)

func emptyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formdeps.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}

func TestHistory_Empty(t *testing.T) {
	db := emptyDB(t)

	out, err := execute(t, nil, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No passes recorded.")

	out, err = execute(t, nil, "history", "--db", db, "--tests")
	require.NoError(t, err)
	assert.Contains(t, out, "No test runs recorded.")
}

func TestHistory_FieldFilterAndLimit(t *testing.T) {
	form := writeForm(t, shippingForm)
	db := filepath.Join(t.TempDir(), "formdeps.db")

	_, err := execute(t, nil, "eval", form, "--field", "country", "--set", "country=US", "--db", db)
	require.NoError(t, err)
	_, err = execute(t, nil, "eval", form, "--field", "qty", "--set", "qty=2", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, nil, "--format", "json", "history", "--db", db)
	require.NoError(t, err)
	var all HistoryResult
	decodeData(t, out, &all)
	require.Len(t, all.Passes, 3, "qty raises a follow-up pass on notify")

	out, err = execute(t, nil, "--format", "json", "history", "--db", db, "--field", "country")
	require.NoError(t, err)
	var byField HistoryResult
	decodeData(t, out, &byField)
	require.Len(t, byField.Passes, 1)
	assert.Equal(t, "country", byField.Passes[0].Trigger.FieldID)
	require.Len(t, byField.Passes[0].Mutations, 1)

	out, err = execute(t, nil, "--format", "json", "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	var limited HistoryResult
	decodeData(t, out, &limited)
	require.Len(t, limited.Passes, 1)
	assert.Equal(t, int64(3), limited.Passes[0].Seq, "limit keeps the most recent passes")
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"no database", []string{"history"}, ErrCodeInvalidFlag},
		{"missing database", []string{"history", "--db", filepath.Join(t.TempDir(), "nope.db")}, ErrCodeNotFound},
		{"negative limit", []string{"history", "--db", "x.db", "--limit", "-1"}, ErrCodeInvalidFlag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, nil, append([]string{"--format", "json"}, tt.args...)...)

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
