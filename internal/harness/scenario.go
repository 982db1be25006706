package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formdeps/internal/compiler"
	"github.com/roach88/formdeps/internal/ir"
)

// Scenario defines a conformance test scenario: a form, a sequence of user
// triggers, and assertions over the passes they produce and the final
// field states.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Form is the path to a form document (.yaml, .yml, .cue or a CUE
	// directory). Relative paths resolve against the scenario file.
	Form string `yaml:"form"`

	// Values override initial field values before the first step.
	Values map[string]any `yaml:"values,omitempty"`

	// Steps run in order. Each step's passes, including event re-entries,
	// complete before the next step starts.
	Steps []Step `yaml:"steps"`

	// Assertions validate the passes and the final state.
	Assertions []Assertion `yaml:"assertions"`

	// Properties name engine guarantees checked after the steps.
	// Supported: idempotent, bounded.
	Properties []string `yaml:"properties,omitempty"`
}

// Step is one user interaction: optional value edits written to the
// registry, then a trigger.
type Step struct {
	Set     map[string]any `yaml:"set,omitempty"`
	Trigger TriggerSpec    `yaml:"trigger"`
}

// TriggerSpec is the YAML form of ir.Trigger. Kind defaults to change.
type TriggerSpec struct {
	Field string `yaml:"field"`
	Kind  string `yaml:"kind,omitempty"`
	Name  string `yaml:"name,omitempty"`
}

// Trigger converts t to an ir.Trigger.
func (t TriggerSpec) Trigger() ir.Trigger {
	kind := ir.TriggerKind(t.Kind)
	if kind == "" {
		kind = ir.TriggerChange
	}
	return ir.Trigger{FieldID: t.Field, Kind: kind, Name: t.Name}
}

// Assertion validates passes or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "mutation_contains": a mutation matching the filter was applied
	// - "mutation_absent": no mutation matching the filter was applied
	// - "mutation_count": exactly Count mutations match the filter
	// - "diagnostic_contains": a diagnostic with Code (and Fields) was reported
	// - "event_contains": an event named Event was emitted
	// - "final_value": Field's final value equals Value
	// - "final_state": Field's final state matches Expect (subset)
	Type string `yaml:"type"`

	// Step limits pass assertions to one step (0-based). Nil means any step.
	Step *int `yaml:"step,omitempty"`

	// Mutation filter. Empty members match anything.
	Field      string `yaml:"field,omitempty"`
	Kind       string `yaml:"kind,omitempty"`
	Dependency string `yaml:"dependency,omitempty"`
	Value      any    `yaml:"value,omitempty"`
	Flag       *bool  `yaml:"flag,omitempty"`
	ClassName  string `yaml:"className,omitempty"`

	// Count is the expected number of matches (used by mutation_count).
	Count int `yaml:"count,omitempty"`

	// Code and Fields select a diagnostic (used by diagnostic_contains).
	Code   string   `yaml:"code,omitempty"`
	Fields []string `yaml:"fields,omitempty"`

	// Event is the expected event name (used by event_contains).
	Event string `yaml:"event,omitempty"`

	// Expect holds expected state members (used by final_state):
	// value, visible, enabled, required, options, style, classes.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertMutationContains   = "mutation_contains"
	AssertMutationAbsent     = "mutation_absent"
	AssertMutationCount      = "mutation_count"
	AssertDiagnosticContains = "diagnostic_contains"
	AssertEventContains      = "event_contains"
	AssertFinalValue         = "final_value"
	AssertFinalState         = "final_state"
)

// Property constants.
const (
	PropertyIdempotent = "idempotent"
	PropertyBounded    = "bounded"
)

var finalStateKeys = map[string]bool{
	"value": true, "visible": true, "enabled": true, "required": true,
	"options": true, "style": true, "classes": true,
}

// LoadScenario reads and parses a scenario YAML file, resolving the form
// path relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the form path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Form != "" && !filepath.IsAbs(scenario.Form) && basePath != "" {
		scenario.Form = filepath.Join(basePath, scenario.Form)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every scenario file directly under dir, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	files, err := compiler.FindYAMLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	scenarios := make([]*Scenario, 0, len(files))
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(f), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Form == "" {
		return fmt.Errorf("form is required")
	}
	if _, err := os.Stat(s.Form); os.IsNotExist(err) {
		return fmt.Errorf("form not found: %s", s.Form)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 && len(s.Properties) == 0 {
		return fmt.Errorf("at least one assertion or property is required")
	}

	for i, step := range s.Steps {
		if step.Trigger.Field == "" {
			return fmt.Errorf("steps[%d].trigger: field is required", i)
		}
		if kind := step.Trigger.Trigger().Kind; !ir.ValidTriggers[kind] {
			return fmt.Errorf("steps[%d].trigger: invalid kind %q", i, kind)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}

	for _, p := range s.Properties {
		switch p {
		case PropertyIdempotent, PropertyBounded:
		default:
			return fmt.Errorf("unknown property %q", p)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step != nil && (*a.Step < 0 || *a.Step >= steps) {
		return fmt.Errorf("assertions[%d]: step %d out of range (0..%d)", index, *a.Step, steps-1)
	}
	if a.Kind != "" && !validMutationKind(ir.MutationKind(a.Kind)) {
		return fmt.Errorf("assertions[%d]: unknown mutation kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertMutationContains, AssertMutationAbsent:
		if a.Field == "" && a.Dependency == "" {
			return fmt.Errorf("assertions[%d]: field or dependency is required for %s", index, a.Type)
		}
	case AssertMutationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for mutation_count", index)
		}
	case AssertDiagnosticContains:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic_contains", index)
		}
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertFinalValue:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for final_value", index)
		}
	case AssertFinalState:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for k := range a.Expect {
			if !finalStateKeys[k] {
				return fmt.Errorf("assertions[%d]: unknown state member %q", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validMutationKind(k ir.MutationKind) bool {
	switch k {
	case ir.MutationValue, ir.MutationVisibility, ir.MutationEnabled, ir.MutationRequired,
		ir.MutationOptions, ir.MutationStyle, ir.MutationClass:
		return true
	}
	return false
}
