package ir

import "time"

// Option is a single choice of a select-like field.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
}

// Field is a form field definition owned by the external registry.
// Dependencies and Dependents are derived by graph.Annotate and are never
// authoritative.
type Field struct {
	ID           string   `json:"id" yaml:"id"`
	Type         string   `json:"type" yaml:"type"`
	Label        string   `json:"label,omitempty" yaml:"label,omitempty"`
	Required     bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Options      []Option `json:"options,omitempty" yaml:"options,omitempty"`
	Value        any      `json:"value,omitempty" yaml:"value,omitempty"`
	Hidden       bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Disabled     bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"-"`
	Dependents   []string `json:"dependents,omitempty" yaml:"-"`
}

// DependencyType describes the intent of a dependency.
// It is descriptive metadata; the action list defines behavior.
type DependencyType string

const (
	DependencyValue      DependencyType = "value"
	DependencyVisibility DependencyType = "visibility"
	DependencyValidation DependencyType = "validation"
	DependencyOptions    DependencyType = "options"
	DependencyStyle      DependencyType = "style"
	DependencyBehavior   DependencyType = "behavior"
)

// ValidDependencyTypes defines allowed dependency types.
var ValidDependencyTypes = map[DependencyType]bool{
	DependencyValue:      true,
	DependencyVisibility: true,
	DependencyValidation: true,
	DependencyOptions:    true,
	DependencyStyle:      true,
	DependencyBehavior:   true,
}

// TriggerKind is the UI event kind that causes a dependency to be considered.
type TriggerKind string

const (
	TriggerChange TriggerKind = "change"
	TriggerBlur   TriggerKind = "blur"
	TriggerFocus  TriggerKind = "focus"
	TriggerSubmit TriggerKind = "submit"
	TriggerCustom TriggerKind = "custom"
)

// ValidTriggers defines allowed trigger kinds.
var ValidTriggers = map[TriggerKind]bool{
	TriggerChange: true,
	TriggerBlur:   true,
	TriggerFocus:  true,
	TriggerSubmit: true,
	TriggerCustom: true,
}

// TestResult is the outcome recorded by the test harness.
type TestResult string

const (
	TestPass  TestResult = "pass"
	TestFail  TestResult = "fail"
	TestError TestResult = "error"
)

// FieldDependency links a source field to a target field via conditions and actions.
type FieldDependency struct {
	ID             string                `json:"id" yaml:"id"`
	Name           string                `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled        bool                  `json:"enabled" yaml:"-"`
	SourceFieldID  string                `json:"sourceFieldId" yaml:"sourceFieldId"`
	TargetFieldID  string                `json:"targetFieldId" yaml:"targetFieldId"`
	DependencyType DependencyType        `json:"dependencyType,omitempty" yaml:"dependencyType,omitempty"`
	Trigger        TriggerKind           `json:"trigger" yaml:"trigger"`
	CustomEvent    string                `json:"customEvent,omitempty" yaml:"customEvent,omitempty"`
	Conditions     []DependencyCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions        []DependencyAction    `json:"actions" yaml:"actions"`
	Priority       int                   `json:"priority" yaml:"priority"`
	LastTested     *time.Time            `json:"lastTested,omitempty" yaml:"lastTested,omitempty"`
	TestResult     TestResult            `json:"testResult,omitempty" yaml:"testResult,omitempty"`
}

// Matches reports whether the dependency listens for trigger t.
// A custom dependency with an empty CustomEvent matches any custom trigger.
func (d *FieldDependency) Matches(t Trigger) bool {
	if d.Trigger != t.Kind {
		return false
	}
	if t.Kind == TriggerCustom && d.CustomEvent != "" {
		return d.CustomEvent == t.Name
	}
	return true
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpIsEmpty      Operator = "is_empty"
	OpIsNotEmpty   Operator = "is_not_empty"
	OpIsChecked    Operator = "is_checked"
	OpIsNotChecked Operator = "is_not_checked"
)

// ValidOperators defines allowed condition operators.
var ValidOperators = map[Operator]bool{
	OpEquals:       true,
	OpNotEquals:    true,
	OpContains:     true,
	OpNotContains:  true,
	OpGreaterThan:  true,
	OpLessThan:     true,
	OpIsEmpty:      true,
	OpIsNotEmpty:   true,
	OpIsChecked:    true,
	OpIsNotChecked: true,
}

// LogicalOperator joins a condition to the previous one in the list.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// ValueType selects the coercion applied by equals/not_equals.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
)

// DependencyCondition is one comparison in a dependency's condition list.
// An empty FieldID refers to the dependency's source field.
type DependencyCondition struct {
	ID              string          `json:"id" yaml:"id"`
	FieldID         string          `json:"fieldId,omitempty" yaml:"fieldId,omitempty"`
	Operator        Operator        `json:"operator" yaml:"operator"`
	Value           any             `json:"value,omitempty" yaml:"value,omitempty"`
	ValueType       ValueType       `json:"valueType,omitempty" yaml:"valueType,omitempty"`
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty" yaml:"logicalOperator,omitempty"`
}

// ActionType names what an action does to its target.
type ActionType string

const (
	ActionSetValue     ActionType = "set_value"
	ActionClearValue   ActionType = "clear_value"
	ActionSetOptions   ActionType = "set_options"
	ActionClearOptions ActionType = "clear_options"
	ActionShow         ActionType = "show"
	ActionHide         ActionType = "hide"
	ActionEnable       ActionType = "enable"
	ActionDisable      ActionType = "disable"
	ActionRequire      ActionType = "require"
	ActionOptional     ActionType = "optional"
	ActionSetStyle     ActionType = "set_style"
	ActionAddClass     ActionType = "add_class"
	ActionRemoveClass  ActionType = "remove_class"
	ActionTriggerEvent ActionType = "trigger_event"
)

// ValidActionTypes defines allowed action types.
var ValidActionTypes = map[ActionType]bool{
	ActionSetValue:     true,
	ActionClearValue:   true,
	ActionSetOptions:   true,
	ActionClearOptions: true,
	ActionShow:         true,
	ActionHide:         true,
	ActionEnable:       true,
	ActionDisable:      true,
	ActionRequire:      true,
	ActionOptional:     true,
	ActionSetStyle:     true,
	ActionAddClass:     true,
	ActionRemoveClass:  true,
	ActionTriggerEvent: true,
}

// DependencyAction is one step of a fired dependency.
// An empty TargetFieldID refers to the dependency's target field.
// ValueFrom copies the current value of another field and takes precedence
// over Value. Delay is in milliseconds and only applies to trigger_event.
type DependencyAction struct {
	ID            string            `json:"id" yaml:"id"`
	Type          ActionType        `json:"type" yaml:"type"`
	TargetFieldID string            `json:"targetFieldId,omitempty" yaml:"targetFieldId,omitempty"`
	Value         any               `json:"value,omitempty" yaml:"value,omitempty"`
	ValueFrom     string            `json:"valueFrom,omitempty" yaml:"valueFrom,omitempty"`
	Options       []Option          `json:"options,omitempty" yaml:"options,omitempty"`
	Style         map[string]string `json:"style,omitempty" yaml:"style,omitempty"`
	ClassName     string            `json:"className,omitempty" yaml:"className,omitempty"`
	EventName     string            `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	Delay         int               `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Trigger is a UI event on a field. Name identifies custom events.
type Trigger struct {
	FieldID string      `json:"fieldId" yaml:"fieldId"`
	Kind    TriggerKind `json:"kind" yaml:"kind"`
	Name    string      `json:"name,omitempty" yaml:"name,omitempty"`
}

// Form bundles fields and dependencies in declaration order.
type Form struct {
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	Fields       []Field           `json:"fields" yaml:"fields"`
	Dependencies []FieldDependency `json:"dependencies" yaml:"dependencies"`
}

// Snapshot builds the initial field states for the form.
func (f *Form) Snapshot() Snapshot {
	snap := make(Snapshot, len(f.Fields))
	for _, field := range f.Fields {
		snap[field.ID] = NewFieldState(field)
	}
	return snap
}
