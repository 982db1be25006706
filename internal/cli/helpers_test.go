package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// shippingForm has two independent chains: country reveals state, and qty
// sets total and raises an immediate recalc event that classes notify.
const shippingForm = `name: shipping
fields:
  - id: country
    type: select
    value: CA
  - id: state
    type: select
    hidden: true
  - id: qty
    type: number
    value: 1
  - id: total
    type: number
    value: 0
  - id: notify
    type: text
dependencies:
  - id: show-state
    sourceFieldId: country
    targetFieldId: state
    conditions:
      - { operator: equals, value: US }
    actions:
      - { type: show }
  - id: promo-total
    sourceFieldId: qty
    targetFieldId: total
    priority: 10
    conditions:
      - { operator: greater_than, value: 0 }
    actions:
      - { type: set_value, value: 8 }
  - id: ping
    sourceFieldId: qty
    targetFieldId: notify
    actions:
      - { type: trigger_event, eventName: recalc }
  - id: on-recalc
    sourceFieldId: notify
    targetFieldId: notify
    trigger: custom
    customEvent: recalc
    actions:
      - { type: add_class, className: recalculated }
`

// mirrorForm copies two fields into each other; the second copy is
// disabled in mirrorDisabledForm.
const mirrorForm = `name: mirror
fields:
  - { id: fieldX, type: text, value: "" }
  - { id: fieldY, type: text, value: "" }
dependencies:
  - id: copy-x
    sourceFieldId: fieldX
    targetFieldId: fieldY
    actions:
      - { type: set_value, valueFrom: fieldX }
  - id: copy-y
    sourceFieldId: fieldY
    targetFieldId: fieldX
    actions:
      - { type: set_value, valueFrom: fieldY }
`

const brokenForm = `name: broken
fields:
  - { id: country, type: select }
dependencies:
  - id: show-state
    sourceFieldId: country
    targetFieldId: state
    actions:
      - { type: show }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeForm(t *testing.T, content string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "form.yaml", content)
}

// execute runs the root command with args and returns stdout and the
// error. Logs and verbose output go to a discarded stderr.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	} else {
		cmd.SetIn(strings.NewReader(""))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data member of a JSON envelope into v and
// returns the envelope.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
