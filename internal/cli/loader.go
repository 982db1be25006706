package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formdeps/internal/compiler"
	"github.com/roach88/formdeps/internal/ir"
)

// Command-level error codes (E001-E099). Form validation codes live in
// the compiler package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeInvalidFlag  = "E002" // Flag value could not be parsed
	ErrCodeLoadFailed   = "E004" // Form could not be compiled
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeInvalidForm  = "E006" // Form compiled but failed validation
	ErrCodeUnknownField = "E007" // Flag names a field the form does not declare
	ErrCodeStore        = "E008" // Evaluation log could not be opened or written
)

// LoadError is a command-level failure with an error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadForm compiles the form at path. With strict set, a form that fails
// validation is rejected with the first error; the validate command passes
// false to report every problem itself.
func loadForm(path string, strict bool) (*compiler.Document, []compiler.ValidationError, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("form not found: %s", path), Err: err}
	}

	doc, err := compiler.Load(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
	}

	errs := doc.Validate()
	if strict && len(errs) > 0 {
		return nil, errs, &LoadError{
			Code:    ErrCodeInvalidForm,
			Message: fmt.Sprintf("form %s is invalid: %v (run validate for every error)", path, errs[0]),
		}
	}
	return doc, errs, nil
}

// parseSets parses repeated id=value flags. Values are decoded as YAML
// scalars or flow collections, so 3 is a number, true a bool and [a, b] a
// list; anything else is a string.
func parseSets(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, p := range pairs {
		id, raw, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, &LoadError{Code: ErrCodeInvalidFlag, Message: fmt.Sprintf("--set %q: want id=value", p)}
		}
		var v any
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
		} else {
			v = ""
		}
		values[id] = ir.Normalize(v)
	}
	return values, nil
}

// sortedKeys returns the keys of values in order so writes are
// deterministic.
func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyToSnapshot writes values into snap, rejecting undeclared fields.
func applyToSnapshot(snap ir.Snapshot, values map[string]any) error {
	for _, id := range sortedKeys(values) {
		st, ok := snap[id]
		if !ok {
			return &LoadError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("--set: unknown field %q", id)}
		}
		st.Value = values[id]
		snap[id] = st
	}
	return nil
}

// valueSetter is the registry write used by eval and run.
type valueSetter interface {
	Set(fieldID string, value any) error
}

func applyToRegistry(reg valueSetter, values map[string]any) error {
	for _, id := range sortedKeys(values) {
		if err := reg.Set(id, values[id]); err != nil {
			return &LoadError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("--set: %v", err), Err: err}
		}
	}
	return nil
}
