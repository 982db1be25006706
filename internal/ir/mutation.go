package ir

// MutationKind groups mutations that compete for the same target property.
type MutationKind string

const (
	MutationValue      MutationKind = "value"
	MutationVisibility MutationKind = "visibility"
	MutationEnabled    MutationKind = "enabled"
	MutationRequired   MutationKind = "required"
	MutationOptions    MutationKind = "options"
	MutationStyle      MutationKind = "style"
	MutationClass      MutationKind = "class"
)

// Mutation is a proposed change to a target field, not yet applied.
//
// Priority and Order are copied from the owning dependency (Order is its
// position in the declaration list) so conflicts can be resolved without
// looking the dependency up again. Flag carries the boolean of
// show/hide, enable/disable, require/optional and add/remove_class.
type Mutation struct {
	DependencyID  string            `json:"dependencyId"`
	ActionID      string            `json:"actionId,omitempty"`
	ActionType    ActionType        `json:"actionType"`
	Priority      int               `json:"priority"`
	Order         int               `json:"order"`
	TargetFieldID string            `json:"targetFieldId"`
	Kind          MutationKind      `json:"kind"`
	Value         any               `json:"value,omitempty"`
	Flag          bool              `json:"flag,omitempty"`
	Options       []Option          `json:"options,omitempty"`
	Style         map[string]string `json:"style,omitempty"`
	ClassName     string            `json:"className,omitempty"`
}

// ConflictKey identifies the (target, kind) slot a mutation competes for.
// Class mutations include the class name so distinct classes never conflict.
func (m Mutation) ConflictKey() string {
	if m.Kind == MutationClass {
		return m.TargetFieldID + "\x00" + string(m.Kind) + "\x00" + m.ClassName
	}
	return m.TargetFieldID + "\x00" + string(m.Kind)
}

// Event is a named event emitted by a trigger_event action.
// Delay is in milliseconds; zero means emit immediately after the pass.
type Event struct {
	DependencyID  string `json:"dependencyId"`
	ActionID      string `json:"actionId,omitempty"`
	Name          string `json:"name"`
	SourceFieldID string `json:"sourceFieldId"`
	TargetFieldID string `json:"targetFieldId,omitempty"`
	Delay         int    `json:"delay,omitempty"`
}

// Result is the outcome of one top-level evaluation pass.
// Seq and SnapshotHash are stamped by the engine façade; the pure
// evaluator leaves them empty.
type Result struct {
	PassID       string       `json:"passId,omitempty"`
	Seq          int64        `json:"seq,omitempty"`
	SnapshotHash string       `json:"snapshotHash,omitempty"`
	Trigger      Trigger      `json:"trigger"`
	Mutations    []Mutation   `json:"mutations"`
	Events       []Event      `json:"events,omitempty"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
	Visited      []string     `json:"visited"`
	Levels       int          `json:"levels"`
}

// HasDiagnostic reports whether the result carries a diagnostic with code.
func (r *Result) HasDiagnostic(code DiagnosticCode) bool {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}
