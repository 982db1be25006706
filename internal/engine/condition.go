package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/formdeps/internal/ir"
)

// EvaluateCondition resolves one condition against a snapshot.
//
// The condition's field defaults to the dependency's source. A missing field
// or an operator applied to an incompatible value evaluates to false and
// yields a diagnostic; evaluation never fails.
func EvaluateCondition(c ir.DependencyCondition, dep *ir.FieldDependency, snap ir.Snapshot) (bool, []ir.Diagnostic) {
	fieldID := c.FieldID
	if fieldID == "" {
		fieldID = dep.SourceFieldID
	}

	value, ok := snap.Value(fieldID)
	if !ok {
		d := ir.MissingField(dep.ID, fieldID)
		d.ConditionID = c.ID
		return false, []ir.Diagnostic{d}
	}

	mismatch := func(format string, args ...any) (bool, []ir.Diagnostic) {
		d := ir.TypeMismatch(dep.ID, c.ID, format, args...)
		d.FieldID = fieldID
		return false, []ir.Diagnostic{d}
	}

	switch c.Operator {
	case ir.OpEquals, ir.OpNotEquals:
		eq, err := coercedEqual(value, c.Value, c.ValueType)
		if err != nil {
			return mismatch("%s on %q: %v", c.Operator, fieldID, err)
		}
		if c.Operator == ir.OpNotEquals {
			return !eq, nil
		}
		return eq, nil

	case ir.OpContains, ir.OpNotContains:
		found, ok := contains(value, c.Value)
		if !ok {
			return mismatch("%s on %q: value of type %T is neither text nor a list", c.Operator, fieldID, value)
		}
		if c.Operator == ir.OpNotContains {
			return !found, nil
		}
		return found, nil

	case ir.OpGreaterThan, ir.OpLessThan:
		left, lok := toNumber(value)
		right, rok := toNumber(c.Value)
		if !lok || !rok {
			return mismatch("%s on %q: %v and %v are not both numeric", c.Operator, fieldID, value, c.Value)
		}
		if c.Operator == ir.OpGreaterThan {
			return left > right, nil
		}
		return left < right, nil

	case ir.OpIsEmpty:
		return isEmpty(value), nil

	case ir.OpIsNotEmpty:
		return !isEmpty(value), nil

	case ir.OpIsChecked, ir.OpIsNotChecked:
		checked, ok := toChecked(value)
		if !ok {
			return mismatch("%s on %q: value of type %T is not boolean", c.Operator, fieldID, value)
		}
		if c.Operator == ir.OpIsNotChecked {
			return !checked, nil
		}
		return checked, nil

	default:
		return mismatch("unknown operator %q", c.Operator)
	}
}

// coercedEqual compares both sides after coercion to vt.
// An empty value type compares string renderings.
func coercedEqual(a, b any, vt ir.ValueType) (bool, error) {
	switch vt {
	case ir.ValueTypeNumber:
		x, xok := toNumber(a)
		y, yok := toNumber(b)
		if !xok || !yok {
			return false, fmt.Errorf("cannot compare %v and %v as numbers", a, b)
		}
		return x == y, nil
	case ir.ValueTypeBoolean:
		x, xok := toBool(a)
		y, yok := toBool(b)
		if !xok || !yok {
			return false, fmt.Errorf("cannot compare %v and %v as booleans", a, b)
		}
		return x == y, nil
	case ir.ValueTypeString, "":
		return toString(a) == toString(b), nil
	default:
		return false, fmt.Errorf("unknown value type %q", vt)
	}
}

// contains reports substring membership for text and element membership for
// lists. The second result is false when the value is neither.
func contains(value, operand any) (bool, bool) {
	switch v := ir.Normalize(value).(type) {
	case nil:
		return false, true
	case string:
		return strings.Contains(v, toString(operand)), true
	case []any:
		want := toString(operand)
		for _, e := range v {
			if toString(e) == want {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}

func isEmpty(v any) bool {
	switch val := ir.Normalize(v).(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

// toChecked treats nil as unchecked so a fresh checkbox compares cleanly.
func toChecked(v any) (bool, bool) {
	if v == nil {
		return false, true
	}
	return toBool(v)
}

func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toNumber(v any) (float64, bool) {
	switch val := ir.Normalize(v).(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toString renders a value for string comparison. Numbers use the shortest
// representation so 5 and 5.0 render alike.
func toString(v any) string {
	switch val := ir.Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = toString(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
