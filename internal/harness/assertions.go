package harness

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/formdeps/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Passes   []PassRecord  // Passes for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Passes) > 0 {
		fmt.Fprintf(&buf, "\nPasses:\n")
		for _, p := range e.Passes {
			t := p.Result.Trigger
			fmt.Fprintf(&buf, "  [step %d] %s %s", p.Step, t.Kind, t.FieldID)
			if t.Name != "" {
				fmt.Fprintf(&buf, " (%s)", t.Name)
			}
			buf.WriteString("\n")
			for _, m := range p.Result.Mutations {
				fmt.Fprintf(&buf, "    %s\n", describeMutation(m))
			}
			for _, d := range p.Result.Diagnostics {
				fmt.Fprintf(&buf, "    ! %s\n", d)
			}
		}
	}

	return buf.String()
}

func describeMutation(m ir.Mutation) string {
	var detail string
	switch m.Kind {
	case ir.MutationValue:
		detail = fmt.Sprintf("%v", m.Value)
	case ir.MutationOptions:
		detail = fmt.Sprintf("%d options", len(m.Options))
	case ir.MutationStyle:
		detail = fmt.Sprintf("%v", m.Style)
	case ir.MutationClass:
		detail = fmt.Sprintf("%s=%t", m.ClassName, m.Flag)
	default:
		detail = fmt.Sprintf("%t", m.Flag)
	}
	return fmt.Sprintf("%s.%s <- %s (%s)", m.TargetFieldID, m.Kind, detail, m.DependencyID)
}

// matchMutation checks a mutation against the assertion's filter.
// Empty filter members match anything.
func matchMutation(m ir.Mutation, a Assertion) bool {
	if a.Field != "" && m.TargetFieldID != a.Field {
		return false
	}
	if a.Kind != "" && string(m.Kind) != a.Kind {
		return false
	}
	if a.Dependency != "" && m.DependencyID != a.Dependency {
		return false
	}
	if a.ClassName != "" && m.ClassName != a.ClassName {
		return false
	}
	if a.Flag != nil && m.Flag != *a.Flag {
		return false
	}
	if a.Value != nil && !ir.ValuesEqual(m.Value, ir.Normalize(a.Value)) {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	var parts []string
	add := func(k string, v any) { parts = append(parts, fmt.Sprintf("%s=%v", k, v)) }
	if a.Field != "" {
		add("field", a.Field)
	}
	if a.Kind != "" {
		add("kind", a.Kind)
	}
	if a.Dependency != "" {
		add("dependency", a.Dependency)
	}
	if a.ClassName != "" {
		add("className", a.ClassName)
	}
	if a.Flag != nil {
		add("flag", *a.Flag)
	}
	if a.Value != nil {
		add("value", a.Value)
	}
	if a.Step != nil {
		add("step", *a.Step)
	}
	if len(parts) == 0 {
		return "any mutation"
	}
	return "mutation " + strings.Join(parts, " ")
}

func countMatches(result *Result, a Assertion) int {
	n := 0
	for _, m := range result.mutations(a.Step) {
		if matchMutation(m, a) {
			n++
		}
	}
	return n
}

// assertMutationContains checks that at least one applied mutation matches.
func assertMutationContains(result *Result, a Assertion) error {
	if countMatches(result, a) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMutationContains,
		Expected: describeFilter(a),
		Actual:   "not found in passes",
		Passes:   result.Passes,
	}
}

// assertMutationAbsent checks that no applied mutation matches.
func assertMutationAbsent(result *Result, a Assertion) error {
	n := countMatches(result, a)
	if n == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMutationAbsent,
		Expected: "no " + describeFilter(a),
		Actual:   fmt.Sprintf("%d matching mutation(s)", n),
		Passes:   result.Passes,
	}
}

// assertMutationCount checks that exactly Count applied mutations match.
func assertMutationCount(result *Result, a Assertion) error {
	n := countMatches(result, a)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertMutationCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeFilter(a)),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Passes:   result.Passes,
	}
}

// assertDiagnosticContains checks for a diagnostic with the given code.
// When Fields is set, the diagnostic's field list (or its single FieldID)
// must contain every listed field.
func assertDiagnosticContains(result *Result, a Assertion) error {
	for _, d := range result.diagnostics(a.Step) {
		if string(d.Code) != a.Code {
			continue
		}
		fields := d.Fields
		if d.FieldID != "" {
			fields = append(slices.Clone(fields), d.FieldID)
		}
		if containsAll(fields, a.Fields) {
			return nil
		}
	}

	expected := a.Code
	if len(a.Fields) > 0 {
		expected += fmt.Sprintf(" naming %v", a.Fields)
	}
	return &AssertionError{
		Type:     AssertDiagnosticContains,
		Expected: expected,
		Actual:   fmt.Sprintf("diagnostics: %v", result.diagnostics(a.Step)),
		Passes:   result.Passes,
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// assertEventContains checks that an event with the given name was emitted.
func assertEventContains(result *Result, a Assertion) error {
	var names []string
	for _, ev := range result.events(a.Step) {
		if ev.Name == a.Event && (a.Field == "" || ev.TargetFieldID == a.Field) {
			return nil
		}
		names = append(names, ev.Name)
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("event %q", a.Event),
		Actual:   fmt.Sprintf("events: %v", names),
		Passes:   result.Passes,
	}
}

// assertFinalValue checks one field's final value.
func assertFinalValue(result *Result, a Assertion) error {
	st, ok := result.Final[a.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("field %q to exist", a.Field),
			Actual:   "field not in registry",
		}
	}
	if ir.ValuesEqual(st.Value, ir.Normalize(a.Value)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalValue,
		Expected: fmt.Sprintf("%s = %v (type %T)", a.Field, a.Value, a.Value),
		Actual:   fmt.Sprintf("%s = %v (type %T)", a.Field, st.Value, st.Value),
		Passes:   result.Passes,
	}
}

// assertFinalState checks a subset of one field's final state.
// Classes compare as a set; style compares only the listed properties.
func assertFinalState(result *Result, a Assertion) error {
	st, ok := result.Final[a.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("field %q to exist", a.Field),
			Actual:   "field not in registry",
		}
	}

	actual := stateMembers(st)

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := ir.Normalize(a.Expect[key])
		if !stateMemberEqual(key, expected, actual[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Field, key, expected),
				Actual:   fmt.Sprintf("%s.%s = %v", a.Field, key, actual[key]),
				Passes:   result.Passes,
			}
		}
	}
	return nil
}

func stateMembers(st ir.FieldState) map[string]any {
	classes := make([]any, len(st.Classes))
	for i, c := range st.Classes {
		classes[i] = c
	}
	options := make([]any, len(st.Options))
	for i, o := range st.Options {
		options[i] = map[string]any{"label": o.Label, "value": ir.Normalize(o.Value)}
	}
	style := make(map[string]any, len(st.Style))
	for k, v := range st.Style {
		style[k] = v
	}
	return map[string]any{
		"value":    st.Value,
		"visible":  st.Visible,
		"enabled":  st.Enabled,
		"required": st.Required,
		"options":  options,
		"style":    style,
		"classes":  classes,
	}
}

func stateMemberEqual(key string, expected, actual any) bool {
	switch key {
	case "classes":
		exp, ok1 := expected.([]any)
		act, ok2 := actual.([]any)
		if !ok1 || !ok2 || len(exp) != len(act) {
			return false
		}
		for _, e := range exp {
			if !slices.ContainsFunc(act, func(x any) bool { return reflect.DeepEqual(x, e) }) {
				return false
			}
		}
		return true
	case "style":
		exp, ok1 := expected.(map[string]any)
		act, ok2 := actual.(map[string]any)
		if !ok1 || !ok2 {
			return false
		}
		for k, v := range exp {
			if act[k] != v {
				return false
			}
		}
		return true
	default:
		return ir.ValuesEqual(expected, actual)
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMutationContains:
			err = assertMutationContains(result, assertion)
		case AssertMutationAbsent:
			err = assertMutationAbsent(result, assertion)
		case AssertMutationCount:
			err = assertMutationCount(result, assertion)
		case AssertDiagnosticContains:
			err = assertDiagnosticContains(result, assertion)
		case AssertEventContains:
			err = assertEventContains(result, assertion)
		case AssertFinalValue:
			err = assertFinalValue(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
