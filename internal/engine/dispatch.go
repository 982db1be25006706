package engine

import "github.com/roach88/formdeps/internal/ir"

// Dispatch turns a fired dependency's actions into mutation descriptors and
// events, in declared order. Nothing is written: the descriptors go through
// priority resolution before the registry sees them.
//
// order is the dependency's position in the declaration list and is copied
// onto every mutation for tie-breaking. A malformed action or one aimed at a
// missing field is skipped with a diagnostic; its siblings still run.
func Dispatch(dep *ir.FieldDependency, order int, snap ir.Snapshot) ([]ir.Mutation, []ir.Event, []ir.Diagnostic) {
	var (
		muts   []ir.Mutation
		events []ir.Event
		diags  []ir.Diagnostic
	)

	for _, a := range dep.Actions {
		target := a.TargetFieldID
		if target == "" {
			target = dep.TargetFieldID
		}

		if a.Type == ir.ActionTriggerEvent {
			ev, d := dispatchEvent(dep, a, target)
			if d != nil {
				diags = append(diags, *d)
				continue
			}
			events = append(events, ev)
			continue
		}

		if !ir.ValidActionTypes[a.Type] {
			diags = append(diags, ir.MalformedAction(dep.ID, a.ID, "unknown action type %q", a.Type))
			continue
		}
		if target == "" {
			diags = append(diags, ir.MalformedAction(dep.ID, a.ID, "%s has no target field", a.Type))
			continue
		}
		if _, ok := snap[target]; !ok {
			d := ir.MissingField(dep.ID, target)
			d.ActionID = a.ID
			diags = append(diags, d)
			continue
		}

		m := ir.Mutation{
			DependencyID:  dep.ID,
			ActionID:      a.ID,
			ActionType:    a.Type,
			Priority:      dep.Priority,
			Order:         order,
			TargetFieldID: target,
		}

		if d := describe(&m, dep, a, snap); d != nil {
			diags = append(diags, *d)
			continue
		}
		muts = append(muts, m)
	}

	return muts, events, diags
}

// describe fills the kind-specific part of m from the action.
func describe(m *ir.Mutation, dep *ir.FieldDependency, a ir.DependencyAction, snap ir.Snapshot) *ir.Diagnostic {
	malformed := func(format string, args ...any) *ir.Diagnostic {
		d := ir.MalformedAction(dep.ID, a.ID, format, args...)
		return &d
	}

	switch a.Type {
	case ir.ActionSetValue:
		m.Kind = ir.MutationValue
		switch {
		case a.ValueFrom != "":
			v, ok := snap.Value(a.ValueFrom)
			if !ok {
				d := ir.MissingField(dep.ID, a.ValueFrom)
				d.ActionID = a.ID
				return &d
			}
			m.Value = ir.Normalize(v)
		case a.Value != nil:
			m.Value = ir.Normalize(a.Value)
		default:
			return malformed("set_value needs value or valueFrom")
		}
	case ir.ActionClearValue:
		m.Kind = ir.MutationValue
		m.Value = nil

	case ir.ActionSetOptions:
		if a.Options == nil {
			return malformed("set_options needs options")
		}
		m.Kind = ir.MutationOptions
		m.Options = a.Options
	case ir.ActionClearOptions:
		m.Kind = ir.MutationOptions

	case ir.ActionShow, ir.ActionHide:
		m.Kind = ir.MutationVisibility
		m.Flag = a.Type == ir.ActionShow
	case ir.ActionEnable, ir.ActionDisable:
		m.Kind = ir.MutationEnabled
		m.Flag = a.Type == ir.ActionEnable
	case ir.ActionRequire, ir.ActionOptional:
		m.Kind = ir.MutationRequired
		m.Flag = a.Type == ir.ActionRequire

	case ir.ActionSetStyle:
		if len(a.Style) == 0 {
			return malformed("set_style needs at least one style property")
		}
		m.Kind = ir.MutationStyle
		m.Style = a.Style
	case ir.ActionAddClass, ir.ActionRemoveClass:
		if a.ClassName == "" {
			return malformed("%s needs className", a.Type)
		}
		m.Kind = ir.MutationClass
		m.ClassName = a.ClassName
		m.Flag = a.Type == ir.ActionAddClass
	}
	return nil
}

func dispatchEvent(dep *ir.FieldDependency, a ir.DependencyAction, target string) (ir.Event, *ir.Diagnostic) {
	if a.EventName == "" {
		d := ir.MalformedAction(dep.ID, a.ID, "trigger_event needs eventName")
		return ir.Event{}, &d
	}
	if a.Delay < 0 {
		d := ir.MalformedAction(dep.ID, a.ID, "negative delay %d", a.Delay)
		return ir.Event{}, &d
	}
	return ir.Event{
		DependencyID:  dep.ID,
		ActionID:      a.ID,
		Name:          a.EventName,
		SourceFieldID: dep.SourceFieldID,
		TargetFieldID: target,
		Delay:         a.Delay,
	}, nil
}
