package ir

import (
	"fmt"
	"strings"
)

// DiagnosticCode categorizes non-fatal evaluation problems.
type DiagnosticCode string

const (
	// DiagMissingFieldReference indicates a condition or action names a field
	// absent from the registry. The condition or action is treated as failed.
	DiagMissingFieldReference DiagnosticCode = "MissingFieldReference"

	// DiagTypeMismatch indicates an operator applied to an incompatible value.
	// The condition evaluates to false.
	DiagTypeMismatch DiagnosticCode = "TypeMismatch"

	// DiagCyclicPropagationTruncated indicates the visited-set refused to
	// re-enter one or more fields during a pass.
	DiagCyclicPropagationTruncated DiagnosticCode = "CyclicPropagationTruncated"

	// DiagMalformedAction indicates an unknown action type or an action missing
	// required fields. The single action is skipped.
	DiagMalformedAction DiagnosticCode = "MalformedAction"
)

// Diagnostic is a non-fatal problem found while evaluating.
type Diagnostic struct {
	Code         DiagnosticCode `json:"code"`
	Message      string         `json:"message"`
	DependencyID string         `json:"dependencyId,omitempty"`
	ConditionID  string         `json:"conditionId,omitempty"`
	ActionID     string         `json:"actionId,omitempty"`
	FieldID      string         `json:"fieldId,omitempty"`
	Fields       []string       `json:"fields,omitempty"`
}

// String renders the diagnostic as "Code: message".
func (d Diagnostic) String() string {
	if len(d.Fields) > 0 {
		return fmt.Sprintf("%s: [%s]", d.Code, strings.Join(d.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// MissingField builds a MissingFieldReference diagnostic.
func MissingField(depID, fieldID string) Diagnostic {
	return Diagnostic{
		Code:         DiagMissingFieldReference,
		Message:      fmt.Sprintf("field %q is not in the registry", fieldID),
		DependencyID: depID,
		FieldID:      fieldID,
	}
}

// TypeMismatch builds a TypeMismatch diagnostic for a condition.
func TypeMismatch(depID, condID string, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:         DiagTypeMismatch,
		Message:      fmt.Sprintf(format, args...),
		DependencyID: depID,
		ConditionID:  condID,
	}
}

// MalformedAction builds a MalformedAction diagnostic.
func MalformedAction(depID, actionID string, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:         DiagMalformedAction,
		Message:      fmt.Sprintf(format, args...),
		DependencyID: depID,
		ActionID:     actionID,
	}
}

// CyclicTruncated builds the single per-pass truncation diagnostic.
func CyclicTruncated(fields []string) Diagnostic {
	return Diagnostic{
		Code:    DiagCyclicPropagationTruncated,
		Message: fmt.Sprintf("refused to re-visit %d field(s) in the same pass", len(fields)),
		Fields:  fields,
	}
}
