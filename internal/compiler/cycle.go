package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formdeps/internal/graph"
	"github.com/roach88/formdeps/internal/ir"
)

// Lint warning codes (W200-W299)
const (
	WarnCycle         = "W200" // enabled dependencies form a cycle
	WarnTypeMismatch  = "W201" // dependencyType disagrees with every action
	WarnUnraisedEvent = "W202" // custom dependency listens for an event nothing raises
	WarnAllDisabled   = "W203" // every dependency on a target is disabled
)

const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Warning is a problem worth showing to the author that does not stop the
// form from loading.
//
// Cycles are warnings, not errors, because they may be intentional: two
// fields that mirror each other are a common pattern and the engine bounds
// every pass at runtime.
type Warning struct {
	Code    string   `json:"code"`
	Path    []string `json:"path,omitempty"` // fields along a cycle: ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// Lint runs the static checks that Validate does not treat as errors.
// Warnings are ordered by code, then by declaration.
func Lint(form *ir.Form) []Warning {
	g := graph.Build(form.Dependencies)

	warnings := AnalyzeCycles(g)
	warnings = append(warnings, checkDependencyTypes(form.Dependencies)...)
	warnings = append(warnings, checkCustomEvents(form.Dependencies)...)
	warnings = append(warnings, checkDisabledTargets(form.Dependencies)...)

	return warnings
}

// AnalyzeCycles converts the graph's cycles into warnings. A graph without
// enabled cycles returns an empty list.
func AnalyzeCycles(g *graph.Graph) []Warning {
	warnings := []Warning{}
	for _, c := range g.Cycles() {
		warnings = append(warnings, Warning{
			Code:    WarnCycle,
			Path:    slices.Clone(c.Fields),
			Message: fmt.Sprintf("%s (via %s)", c.Message, strings.Join(c.Dependencies, ", ")),
			Level:   LevelWarning,
		})
	}
	return warnings
}

// typeActions lists the action types that fit each dependency type.
var typeActions = map[ir.DependencyType][]ir.ActionType{
	ir.DependencyValue:      {ir.ActionSetValue, ir.ActionClearValue},
	ir.DependencyVisibility: {ir.ActionShow, ir.ActionHide},
	ir.DependencyValidation: {ir.ActionRequire, ir.ActionOptional},
	ir.DependencyOptions:    {ir.ActionSetOptions, ir.ActionClearOptions},
	ir.DependencyStyle:      {ir.ActionSetStyle, ir.ActionAddClass, ir.ActionRemoveClass},
	ir.DependencyBehavior:   {ir.ActionEnable, ir.ActionDisable, ir.ActionTriggerEvent},
}

// checkDependencyTypes flags dependencies whose declared type matches none
// of their actions. The type is metadata only, so this is informational.
func checkDependencyTypes(deps []ir.FieldDependency) []Warning {
	var warnings []Warning
	for _, d := range deps {
		allowed, ok := typeActions[d.DependencyType]
		if !ok || len(d.Actions) == 0 {
			continue
		}
		fits := slices.ContainsFunc(d.Actions, func(a ir.DependencyAction) bool {
			return slices.Contains(allowed, a.Type)
		})
		if !fits {
			warnings = append(warnings, Warning{
				Code:    WarnTypeMismatch,
				Message: fmt.Sprintf("dependency %q is typed %q but none of its actions are %s", d.ID, d.DependencyType, joinTypes(allowed)),
				Level:   LevelInfo,
			})
		}
	}
	return warnings
}

// checkCustomEvents flags custom dependencies listening for a named event
// that no trigger_event action raises on their source field. Such a
// dependency can still fire from an external trigger, hence info level.
func checkCustomEvents(deps []ir.FieldDependency) []Warning {
	raised := make(map[string]bool)
	for _, d := range deps {
		for _, a := range d.Actions {
			if a.Type != ir.ActionTriggerEvent {
				continue
			}
			target := a.TargetFieldID
			if target == "" {
				target = d.TargetFieldID
			}
			raised[target+"\x00"+a.EventName] = true
		}
	}

	var warnings []Warning
	for _, d := range deps {
		if d.Trigger != ir.TriggerCustom || d.CustomEvent == "" {
			continue
		}
		if !raised[d.SourceFieldID+"\x00"+d.CustomEvent] {
			warnings = append(warnings, Warning{
				Code:    WarnUnraisedEvent,
				Message: fmt.Sprintf("dependency %q listens for %q on %q but no action raises it", d.ID, d.CustomEvent, d.SourceFieldID),
				Level:   LevelInfo,
			})
		}
	}
	return warnings
}

// checkDisabledTargets flags targets whose every dependency is disabled.
func checkDisabledTargets(deps []ir.FieldDependency) []Warning {
	var order []string
	enabled := make(map[string]bool)
	for _, d := range deps {
		if _, seen := enabled[d.TargetFieldID]; !seen {
			order = append(order, d.TargetFieldID)
		}
		enabled[d.TargetFieldID] = enabled[d.TargetFieldID] || d.Enabled
	}

	var warnings []Warning
	for _, target := range order {
		if !enabled[target] {
			warnings = append(warnings, Warning{
				Code:    WarnAllDisabled,
				Message: fmt.Sprintf("every dependency on %q is disabled", target),
				Level:   LevelInfo,
			})
		}
	}
	return warnings
}

func joinTypes(types []ir.ActionType) string {
	s := make([]string, len(types))
	for i, t := range types {
		s[i] = string(t)
	}
	return strings.Join(s, "/")
}
