package ir

import (
	"maps"
	"reflect"
	"slices"
)

// FieldState is the renderer-owned live state of one field.
type FieldState struct {
	Value    any               `json:"value"`
	Visible  bool              `json:"visible"`
	Enabled  bool              `json:"enabled"`
	Required bool              `json:"required"`
	Options  []Option          `json:"options,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Classes  []string          `json:"classes,omitempty"`
}

// NewFieldState returns the initial state for a field definition.
func NewFieldState(f Field) FieldState {
	return FieldState{
		Value:    Normalize(f.Value),
		Visible:  !f.Hidden,
		Enabled:  !f.Disabled,
		Required: f.Required,
		Options:  slices.Clone(f.Options),
	}
}

// Clone returns a deep copy of the state.
func (s FieldState) Clone() FieldState {
	out := s
	out.Value = cloneValue(s.Value)
	out.Options = slices.Clone(s.Options)
	out.Style = maps.Clone(s.Style)
	out.Classes = slices.Clone(s.Classes)
	return out
}

// HasClass reports whether the class is present.
func (s FieldState) HasClass(name string) bool {
	return slices.Contains(s.Classes, name)
}

// Snapshot maps field id to field state.
type Snapshot map[string]FieldState

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, st := range s {
		out[id] = st.Clone()
	}
	return out
}

// Value returns the field value and whether the field exists.
func (s Snapshot) Value(fieldID string) (any, bool) {
	st, ok := s[fieldID]
	if !ok {
		return nil, false
	}
	return st.Value, true
}

// Changes reports whether applying m would alter the snapshot.
// Mutations on unknown fields never change anything.
func (s Snapshot) Changes(m Mutation) bool {
	st, ok := s[m.TargetFieldID]
	if !ok {
		return false
	}
	switch m.Kind {
	case MutationValue:
		return !ValuesEqual(st.Value, m.Value)
	case MutationVisibility:
		return st.Visible != m.Flag
	case MutationEnabled:
		return st.Enabled != m.Flag
	case MutationRequired:
		return st.Required != m.Flag
	case MutationOptions:
		return !reflect.DeepEqual(normalizeOptions(st.Options), normalizeOptions(m.Options))
	case MutationStyle:
		for k, v := range m.Style {
			if cur, ok := st.Style[k]; !ok || cur != v {
				return true
			}
		}
		return false
	case MutationClass:
		return st.HasClass(m.ClassName) != m.Flag
	default:
		return false
	}
}

// Apply writes m into the snapshot and reports whether anything changed.
func (s Snapshot) Apply(m Mutation) bool {
	if !s.Changes(m) {
		return false
	}
	st := s[m.TargetFieldID]
	switch m.Kind {
	case MutationValue:
		st.Value = cloneValue(Normalize(m.Value))
	case MutationVisibility:
		st.Visible = m.Flag
	case MutationEnabled:
		st.Enabled = m.Flag
	case MutationRequired:
		st.Required = m.Flag
	case MutationOptions:
		st.Options = slices.Clone(m.Options)
	case MutationStyle:
		if st.Style == nil {
			st.Style = make(map[string]string, len(m.Style))
		} else {
			st.Style = maps.Clone(st.Style)
		}
		maps.Copy(st.Style, m.Style)
	case MutationClass:
		if m.Flag {
			st.Classes = append(slices.Clone(st.Classes), m.ClassName)
		} else {
			st.Classes = slices.DeleteFunc(slices.Clone(st.Classes), func(c string) bool {
				return c == m.ClassName
			})
		}
	}
	s[m.TargetFieldID] = st
	return true
}

// Normalize converts decoded values to the canonical in-memory shapes:
// every integer kind becomes float64 and typed slices become []any.
func Normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	default:
		return v
	}
}

// ValuesEqual compares two field values after normalization.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

func normalizeOptions(opts []Option) []Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = Option{Label: o.Label, Value: Normalize(o.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
