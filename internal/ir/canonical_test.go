package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Primitives(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 5, "5"},
		{"integral float", 5.0, "5"},
		{"fraction", 2.5, "2.5"},
		{"negative", -3, "-3"},
		{"string", "US", `"US"`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": 1, "a": []any{"x", 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",2],"b":1}`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// e + combining acute accent normalizes to the precomposed rune
	decomposed := "e\u0301"
	got, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_LineSeparatorsNotEscaped(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))
}

func TestMarshalCanonical_RejectsNaN(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	require.Error(t, err)
}

func TestMarshalCanonical_RejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestSnapshotHash_StableAcrossClassOrder(t *testing.T) {
	a := Snapshot{"f": {Value: "x", Visible: true, Classes: []string{"one", "two"}}}
	b := Snapshot{"f": {Value: "x", Visible: true, Classes: []string{"two", "one"}}}

	ha, err := SnapshotHash(a)
	require.NoError(t, err)
	hb, err := SnapshotHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestSnapshotHash_DiffersOnValue(t *testing.T) {
	ha, err := SnapshotHash(Snapshot{"f": {Value: "x"}})
	require.NoError(t, err)
	hb, err := SnapshotHash(Snapshot{"f": {Value: "y"}})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestCanonicalJSON_Struct(t *testing.T) {
	m := Mutation{DependencyID: "d1", TargetFieldID: "total", Kind: MutationValue, Value: 8, Priority: 10}

	got, err := CanonicalJSON(m)
	require.NoError(t, err)
	assert.Equal(t, `{"actionType":"","dependencyId":"d1","kind":"value","order":0,"priority":10,"targetFieldId":"total","value":8}`, string(got))
}
