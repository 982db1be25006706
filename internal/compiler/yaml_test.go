package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

const checkoutYAML = `name: checkout
fields:
  - id: country
    type: select
    value: US
  - id: state
    type: select
    hidden: true
  - id: qty
    type: number
    value: 3
dependencies:
  - id: show-state
    sourceFieldId: country
    targetFieldId: state
    conditions:
      - operator: equals
        value: US
      - operator: equals
        value: CA
        logicalOperator: or
    actions:
      - type: show
  - id: bulk
    enabled: false
    sourceFieldId: qty
    targetFieldId: qty
    trigger: blur
    priority: 2
    actions:
      - id: mark
        type: add_class
        className: bulk
`

func TestParseYAML(t *testing.T) {
	doc, err := ParseYAML([]byte(checkoutYAML))
	require.NoError(t, err)
	form := doc.Form

	assert.Equal(t, "checkout", form.Name)
	require.Len(t, form.Fields, 3)
	assert.Equal(t, float64(3), form.Fields[2].Value, "integers normalize to float64")

	require.Len(t, form.Dependencies, 2)
	show := form.Dependencies[0]
	assert.True(t, show.Enabled, "omitted enabled means enabled")
	assert.Equal(t, ir.TriggerChange, show.Trigger)
	assert.Equal(t, "c1", show.Conditions[0].ID)
	assert.Equal(t, ir.LogicalOr, show.Conditions[1].LogicalOperator)
	assert.Equal(t, "a1", show.Actions[0].ID)

	bulk := form.Dependencies[1]
	assert.False(t, bulk.Enabled)
	assert.Equal(t, ir.TriggerBlur, bulk.Trigger)
	assert.Equal(t, 2, bulk.Priority)
	assert.Equal(t, "mark", bulk.Actions[0].ID)

	assert.Empty(t, doc.Validate())
}

func TestParseYAMLUnknownKey(t *testing.T) {
	_, err := ParseYAML([]byte(`fields:
  - id: a
    type: text
    colour: red
`))
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
	assert.Contains(t, err.Error(), "colour")
}

func TestParseYAMLEmpty(t *testing.T) {
	_, err := ParseYAML(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}

func TestDocumentValidateLines(t *testing.T) {
	doc, err := ParseYAML([]byte(`fields:
  - id: a
    type: text
dependencies:
  - id: d
    sourceFieldId: a
    targetFieldId: ghost
    actions:
      - type: show
      - type: explode
`))
	require.NoError(t, err)

	errs := doc.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, ErrUnknownTargetField, errs[0].Code)
	assert.Equal(t, 7, errs[0].Line)
	assert.Equal(t, ErrInvalidActionType, errs[1].Code)
	assert.Equal(t, 10, errs[1].Line, "nested paths resolve to their own entry")
}

func TestDocumentLineUnknown(t *testing.T) {
	doc := &Document{Form: &ir.Form{}}
	assert.Equal(t, 0, doc.Line("dependencies[0].id"))
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	doc, err := ParseYAML([]byte(checkoutYAML))
	require.NoError(t, err)

	data, err := MarshalYAML(doc.Form)
	require.NoError(t, err)
	assert.Contains(t, string(data), "enabled: false")
	assert.NotContains(t, string(data), "enabled: true")

	again, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Form, again.Form)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "form.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(checkoutYAML), 0o644))
	doc, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, doc.Path)
	assert.Len(t, doc.Form.Fields, 3)

	cuePath := filepath.Join(dir, "form.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(checkoutCUE), 0o644))
	doc, err = Load(cuePath)
	require.NoError(t, err)
	assert.Equal(t, "checkout", doc.Form.Name)

	_, err = Load(filepath.Join(dir, "form.json"))
	require.Error(t, err)

	txt := filepath.Join(dir, "form.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = Load(txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoadYAMLErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: [\n"), 0o644))

	_, err := LoadYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestFindYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "c.cue", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	files, err := FindYAMLFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)
}
