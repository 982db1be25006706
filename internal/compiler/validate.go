package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/formdeps/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Field errors (E100-E104)
	ErrNoFields         = "E100" // form declares no fields
	ErrFieldIDEmpty     = "E101" // field id is required
	ErrDuplicateFieldID = "E102" // field id declared twice
	ErrFieldTypeEmpty   = "E103" // field type is required

	// Dependency errors (E110-E119)
	ErrDependencyIDEmpty     = "E110" // dependency id is required
	ErrDuplicateDependencyID = "E111" // dependency id declared twice
	ErrUnknownSourceField    = "E112" // sourceFieldId not declared
	ErrUnknownTargetField    = "E113" // targetFieldId not declared
	ErrInvalidDependencyType = "E114" // dependencyType not recognized
	ErrInvalidTrigger        = "E115" // trigger not recognized
	ErrCustomEventMisplaced  = "E116" // customEvent on a non-custom trigger
	ErrNoActions             = "E117" // at least one action required
	ErrDuplicateChildID      = "E118" // condition or action id repeated within a dependency

	// Condition errors (E120-E129)
	ErrInvalidOperator        = "E120" // operator not recognized
	ErrInvalidValueType       = "E121" // valueType not recognized
	ErrInvalidLogicalOperator = "E122" // logicalOperator not AND/OR
	ErrUnknownConditionField  = "E123" // fieldId not declared
	ErrNonNumericComparison   = "E124" // greater_than/less_than against a non-number

	// Action errors (E130-E139)
	ErrInvalidActionType     = "E130" // action type not recognized
	ErrUnknownActionTarget   = "E131" // targetFieldId not declared
	ErrUnknownValueSource    = "E132" // valueFrom not declared
	ErrMissingActionArgument = "E133" // action lacks the input its type requires
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled form for problems the engine would otherwise
// only report at runtime as diagnostics.
// Returns all errors found (does not fail-fast).
func Validate(form *ir.Form) []ValidationError {
	var errs []ValidationError

	if len(form.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrNoFields,
		})
	}

	fields := make(map[string]bool, len(form.Fields))
	for i, f := range form.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: "field id is required",
				Code:    ErrFieldIDEmpty,
			})
			continue
		}
		if fields[f.ID] {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: fmt.Sprintf("duplicate field id: %q", f.ID),
				Code:    ErrDuplicateFieldID,
			})
		}
		fields[f.ID] = true

		if strings.TrimSpace(f.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("field %q has no type", f.ID),
				Code:    ErrFieldTypeEmpty,
			})
		}
	}

	depIDs := make(map[string]bool, len(form.Dependencies))
	for i := range form.Dependencies {
		dep := &form.Dependencies[i]
		path := fmt.Sprintf("dependencies[%d]", i)

		if strings.TrimSpace(dep.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: "dependency id is required",
				Code:    ErrDependencyIDEmpty,
			})
		} else if depIDs[dep.ID] {
			errs = append(errs, ValidationError{
				Field:   path + ".id",
				Message: fmt.Sprintf("duplicate dependency id: %q", dep.ID),
				Code:    ErrDuplicateDependencyID,
			})
		}
		depIDs[dep.ID] = true

		errs = append(errs, validateDependency(dep, path, fields)...)
	}

	return errs
}

func validateDependency(dep *ir.FieldDependency, path string, fields map[string]bool) []ValidationError {
	var errs []ValidationError

	if !fields[dep.SourceFieldID] {
		errs = append(errs, ValidationError{
			Field:   path + ".sourceFieldId",
			Message: fmt.Sprintf("unknown source field %q", dep.SourceFieldID),
			Code:    ErrUnknownSourceField,
		})
	}
	if !fields[dep.TargetFieldID] {
		errs = append(errs, ValidationError{
			Field:   path + ".targetFieldId",
			Message: fmt.Sprintf("unknown target field %q", dep.TargetFieldID),
			Code:    ErrUnknownTargetField,
		})
	}

	if dep.DependencyType != "" && !ir.ValidDependencyTypes[dep.DependencyType] {
		errs = append(errs, ValidationError{
			Field:   path + ".dependencyType",
			Message: fmt.Sprintf("invalid dependency type %q", dep.DependencyType),
			Code:    ErrInvalidDependencyType,
		})
	}

	if !ir.ValidTriggers[dep.Trigger] {
		errs = append(errs, ValidationError{
			Field:   path + ".trigger",
			Message: fmt.Sprintf("invalid trigger %q, must be change, blur, focus, submit or custom", dep.Trigger),
			Code:    ErrInvalidTrigger,
		})
	} else if dep.CustomEvent != "" && dep.Trigger != ir.TriggerCustom {
		errs = append(errs, ValidationError{
			Field:   path + ".customEvent",
			Message: fmt.Sprintf("customEvent %q requires trigger \"custom\", got %q", dep.CustomEvent, dep.Trigger),
			Code:    ErrCustomEventMisplaced,
		})
	}

	ids := make(map[string]bool)
	for j, c := range dep.Conditions {
		cpath := fmt.Sprintf("%s.conditions[%d]", path, j)
		if c.ID != "" {
			if ids["c:"+c.ID] {
				errs = append(errs, ValidationError{
					Field:   cpath + ".id",
					Message: fmt.Sprintf("duplicate condition id: %q", c.ID),
					Code:    ErrDuplicateChildID,
				})
			}
			ids["c:"+c.ID] = true
		}
		errs = append(errs, validateCondition(c, cpath, fields)...)
	}

	if len(dep.Actions) == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".actions",
			Message: fmt.Sprintf("dependency %q has no actions", dep.ID),
			Code:    ErrNoActions,
		})
	}
	for j, a := range dep.Actions {
		apath := fmt.Sprintf("%s.actions[%d]", path, j)
		if a.ID != "" {
			if ids["a:"+a.ID] {
				errs = append(errs, ValidationError{
					Field:   apath + ".id",
					Message: fmt.Sprintf("duplicate action id: %q", a.ID),
					Code:    ErrDuplicateChildID,
				})
			}
			ids["a:"+a.ID] = true
		}
		errs = append(errs, validateAction(a, apath, fields)...)
	}

	return errs
}

func validateCondition(c ir.DependencyCondition, path string, fields map[string]bool) []ValidationError {
	var errs []ValidationError

	if !ir.ValidOperators[c.Operator] {
		errs = append(errs, ValidationError{
			Field:   path + ".operator",
			Message: fmt.Sprintf("invalid operator %q", c.Operator),
			Code:    ErrInvalidOperator,
		})
	}

	switch c.ValueType {
	case "", ir.ValueTypeString, ir.ValueTypeNumber, ir.ValueTypeBoolean:
	default:
		errs = append(errs, ValidationError{
			Field:   path + ".valueType",
			Message: fmt.Sprintf("invalid value type %q, must be string, number or boolean", c.ValueType),
			Code:    ErrInvalidValueType,
		})
	}

	switch c.LogicalOperator {
	case "", ir.LogicalAnd, ir.LogicalOr:
	default:
		errs = append(errs, ValidationError{
			Field:   path + ".logicalOperator",
			Message: fmt.Sprintf("invalid logical operator %q, must be AND or OR", c.LogicalOperator),
			Code:    ErrInvalidLogicalOperator,
		})
	}

	if c.FieldID != "" && !fields[c.FieldID] {
		errs = append(errs, ValidationError{
			Field:   path + ".fieldId",
			Message: fmt.Sprintf("unknown field %q", c.FieldID),
			Code:    ErrUnknownConditionField,
		})
	}

	if c.Operator == ir.OpGreaterThan || c.Operator == ir.OpLessThan {
		if !isNumeric(c.Value) {
			errs = append(errs, ValidationError{
				Field:   path + ".value",
				Message: fmt.Sprintf("%s requires a numeric value, got %v", c.Operator, c.Value),
				Code:    ErrNonNumericComparison,
			})
		}
	}

	return errs
}

func validateAction(a ir.DependencyAction, path string, fields map[string]bool) []ValidationError {
	var errs []ValidationError

	if !ir.ValidActionTypes[a.Type] {
		return append(errs, ValidationError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid action type %q", a.Type),
			Code:    ErrInvalidActionType,
		})
	}

	if a.TargetFieldID != "" && !fields[a.TargetFieldID] {
		errs = append(errs, ValidationError{
			Field:   path + ".targetFieldId",
			Message: fmt.Sprintf("unknown target field %q", a.TargetFieldID),
			Code:    ErrUnknownActionTarget,
		})
	}
	if a.ValueFrom != "" && !fields[a.ValueFrom] {
		errs = append(errs, ValidationError{
			Field:   path + ".valueFrom",
			Message: fmt.Sprintf("unknown field %q", a.ValueFrom),
			Code:    ErrUnknownValueSource,
		})
	}

	missing := func(field, msg string) {
		errs = append(errs, ValidationError{
			Field:   path + "." + field,
			Message: msg,
			Code:    ErrMissingActionArgument,
		})
	}

	switch a.Type {
	case ir.ActionSetValue:
		if a.Value == nil && a.ValueFrom == "" {
			missing("value", "set_value requires value or valueFrom")
		}
	case ir.ActionSetOptions:
		if a.Options == nil {
			missing("options", "set_options requires options")
		}
	case ir.ActionSetStyle:
		if len(a.Style) == 0 {
			missing("style", "set_style requires a non-empty style map")
		}
	case ir.ActionAddClass, ir.ActionRemoveClass:
		if strings.TrimSpace(a.ClassName) == "" {
			missing("className", fmt.Sprintf("%s requires className", a.Type))
		}
	case ir.ActionTriggerEvent:
		if strings.TrimSpace(a.EventName) == "" {
			missing("eventName", "trigger_event requires eventName")
		}
		if a.Delay < 0 {
			missing("delay", fmt.Sprintf("delay must be >= 0, got %d", a.Delay))
		}
	}

	return errs
}

// isNumeric accepts the values the condition evaluator can compare
// numerically: numbers and numeric strings.
func isNumeric(v any) bool {
	switch x := v.(type) {
	case float64, float32, int, int64, int32:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil
	default:
		return false
	}
}
