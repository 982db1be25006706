package compiler

import (
	goerrors "errors"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/formdeps/internal/ir"
)

// LoadDir loads every .cue file of the package in dir and compiles the
// form it declares.
//
// A form is declared with top-level field and dependency structs keyed by
// id, in declaration order:
//
//	package checkout
//
//	name: "checkout"
//
//	field: country: {type: "select", value: "US"}
//	field: state: {type: "select", hidden: true}
//
//	dependency: "show-state": {
//		sourceFieldId: "country"
//		targetFieldId: "state"
//		conditions: [{operator: "equals", value: "US"}]
//		actions: [{type: "show"}]
//	}
func LoadDir(dir string) (*ir.Form, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileForm(v)
}

// CompileString compiles a form from CUE source. The filename is used only
// for error positions.
func CompileString(filename, src string) (*ir.Form, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileForm(v)
}

// CompileForm parses a CUE value into a Form using the CUE Go API.
func CompileForm(v cue.Value) (*ir.Form, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	form := &ir.Form{}

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		form.Name = name
	}

	fieldsVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "field", Message: "at least one field is required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(labelOf(iter.Selector()), iter.Value())
		if err != nil {
			return nil, err
		}
		form.Fields = append(form.Fields, f)
	}

	if depsVal := v.LookupPath(cue.ParsePath("dependency")); depsVal.Exists() {
		iter, err := depsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			d, err := compileDependency(labelOf(iter.Selector()), iter.Value())
			if err != nil {
				return nil, err
			}
			form.Dependencies = append(form.Dependencies, d)
		}
	}

	normalize(form)
	return form, nil
}

func compileField(id string, v cue.Value) (ir.Field, error) {
	f := ir.Field{ID: id}
	path := "field." + id

	var err error
	if f.Type, err = lookupString(v, "type", path, true); err != nil {
		return f, err
	}
	if f.Label, err = lookupString(v, "label", path, false); err != nil {
		return f, err
	}
	if f.Required, err = lookupBool(v, "required", false); err != nil {
		return f, err
	}
	if f.Hidden, err = lookupBool(v, "hidden", false); err != nil {
		return f, err
	}
	if f.Disabled, err = lookupBool(v, "disabled", false); err != nil {
		return f, err
	}
	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		if f.Value, err = decodeAny(val); err != nil {
			return f, err
		}
	}
	if f.Options, err = lookupOptions(v, path); err != nil {
		return f, err
	}
	return f, nil
}

func compileDependency(id string, v cue.Value) (ir.FieldDependency, error) {
	d := ir.FieldDependency{ID: id, Trigger: ir.TriggerChange}
	path := "dependency." + id

	var err error
	if d.Name, err = lookupString(v, "name", path, false); err != nil {
		return d, err
	}
	if d.Enabled, err = lookupBool(v, "enabled", true); err != nil {
		return d, err
	}
	if d.SourceFieldID, err = lookupString(v, "sourceFieldId", path, true); err != nil {
		return d, err
	}
	if d.TargetFieldID, err = lookupString(v, "targetFieldId", path, true); err != nil {
		return d, err
	}
	typ, err := lookupString(v, "dependencyType", path, false)
	if err != nil {
		return d, err
	}
	d.DependencyType = ir.DependencyType(typ)
	if trig, err := lookupString(v, "trigger", path, false); err != nil {
		return d, err
	} else if trig != "" {
		d.Trigger = ir.TriggerKind(trig)
	}
	if d.CustomEvent, err = lookupString(v, "customEvent", path, false); err != nil {
		return d, err
	}
	if d.Priority, err = lookupInt(v, "priority", path); err != nil {
		return d, err
	}

	if condsVal := v.LookupPath(cue.ParsePath("conditions")); condsVal.Exists() {
		list, err := condsVal.List()
		if err != nil {
			return d, formatCUEError(err)
		}
		for i := 0; list.Next(); i++ {
			c, err := compileCondition(list.Value(), fmt.Sprintf("%s.conditions[%d]", path, i))
			if err != nil {
				return d, err
			}
			d.Conditions = append(d.Conditions, c)
		}
	}

	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return d, &CompileError{Field: path + ".actions", Message: "at least one action is required", Pos: v.Pos()}
	}
	list, err := actionsVal.List()
	if err != nil {
		return d, formatCUEError(err)
	}
	for i := 0; list.Next(); i++ {
		a, err := compileAction(list.Value(), fmt.Sprintf("%s.actions[%d]", path, i))
		if err != nil {
			return d, err
		}
		d.Actions = append(d.Actions, a)
	}

	return d, nil
}

func compileCondition(v cue.Value, path string) (ir.DependencyCondition, error) {
	var c ir.DependencyCondition
	var err error

	if c.ID, err = lookupString(v, "id", path, false); err != nil {
		return c, err
	}
	if c.FieldID, err = lookupString(v, "fieldId", path, false); err != nil {
		return c, err
	}
	op, err := lookupString(v, "operator", path, true)
	if err != nil {
		return c, err
	}
	c.Operator = ir.Operator(op)
	vt, err := lookupString(v, "valueType", path, false)
	if err != nil {
		return c, err
	}
	c.ValueType = ir.ValueType(vt)
	lo, err := lookupString(v, "logicalOperator", path, false)
	if err != nil {
		return c, err
	}
	c.LogicalOperator = ir.LogicalOperator(strings.ToUpper(lo))
	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		if c.Value, err = decodeAny(val); err != nil {
			return c, err
		}
	}
	return c, nil
}

func compileAction(v cue.Value, path string) (ir.DependencyAction, error) {
	var a ir.DependencyAction
	var err error

	if a.ID, err = lookupString(v, "id", path, false); err != nil {
		return a, err
	}
	typ, err := lookupString(v, "type", path, true)
	if err != nil {
		return a, err
	}
	a.Type = ir.ActionType(typ)
	if a.TargetFieldID, err = lookupString(v, "targetFieldId", path, false); err != nil {
		return a, err
	}
	if a.ValueFrom, err = lookupString(v, "valueFrom", path, false); err != nil {
		return a, err
	}
	if a.ClassName, err = lookupString(v, "className", path, false); err != nil {
		return a, err
	}
	if a.EventName, err = lookupString(v, "eventName", path, false); err != nil {
		return a, err
	}
	if a.Delay, err = lookupInt(v, "delay", path); err != nil {
		return a, err
	}
	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		if a.Value, err = decodeAny(val); err != nil {
			return a, err
		}
	}
	if a.Options, err = lookupOptions(v, path); err != nil {
		return a, err
	}

	if styleVal := v.LookupPath(cue.ParsePath("style")); styleVal.Exists() {
		iter, err := styleVal.Fields()
		if err != nil {
			return a, formatCUEError(err)
		}
		a.Style = make(map[string]string)
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return a, formatCUEError(err)
			}
			a.Style[labelOf(iter.Selector())] = s
		}
	}
	return a, nil
}

func lookupOptions(v cue.Value, path string) ([]ir.Option, error) {
	optsVal := v.LookupPath(cue.ParsePath("options"))
	if !optsVal.Exists() {
		return nil, nil
	}
	list, err := optsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	opts := []ir.Option{}
	for i := 0; list.Next(); i++ {
		ov := list.Value()
		label, err := lookupString(ov, "label", fmt.Sprintf("%s.options[%d]", path, i), false)
		if err != nil {
			return nil, err
		}
		opt := ir.Option{Label: label}
		if val := ov.LookupPath(cue.ParsePath("value")); val.Exists() {
			if opt.Value, err = decodeAny(val); err != nil {
				return nil, err
			}
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func lookupString(v cue.Value, key, path string, required bool) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		if required {
			return "", &CompileError{Field: path + "." + key, Message: key + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func lookupBool(v cue.Value, key string, def bool) (bool, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return def, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func lookupInt(v cue.Value, key, path string) (int, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return 0, nil
	}
	if val.Kind() != cue.IntKind {
		return 0, &CompileError{Field: path + "." + key, Message: key + " must be an integer", Pos: val.Pos()}
	}
	n, err := val.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// decodeAny converts a concrete CUE value to the in-memory value shapes:
// numbers become float64, lists []any and structs map[string]any.
func decodeAny(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return float64(n), nil
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for list.Next() {
			e, err := decodeAny(list.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := make(map[string]any)
		for iter.Next() {
			e, err := decodeAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out[labelOf(iter.Selector())] = e
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// labelOf returns a struct label without CUE quoting, so "show-state"
// keys come back as show-state.
func labelOf(sel cue.Selector) string {
	s := sel.String()
	if strings.HasPrefix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// normalize fills ids the author may omit. Condition and action ids default
// to their position within the dependency.
func normalize(form *ir.Form) {
	for i := range form.Dependencies {
		d := &form.Dependencies[i]
		for j := range d.Conditions {
			if d.Conditions[j].ID == "" {
				d.Conditions[j].ID = fmt.Sprintf("c%d", j+1)
			}
		}
		for j := range d.Actions {
			if d.Actions[j].ID == "" {
				d.Actions[j].ID = fmt.Sprintf("a%d", j+1)
			}
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCompileError reports whether err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return goerrors.As(err, &ce)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
