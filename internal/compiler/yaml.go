package compiler

import (
	"bytes"
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formdeps/internal/ir"
)

// yamlDependency decodes the enabled flag as optional so an omitted key
// means enabled.
type yamlDependency struct {
	ir.FieldDependency `yaml:",inline"`
	Enabled            *bool `yaml:"enabled,omitempty"`
}

type yamlForm struct {
	Name         string           `yaml:"name"`
	Fields       []ir.Field       `yaml:"fields"`
	Dependencies []yamlDependency `yaml:"dependencies"`
}

// Document is a form decoded from YAML together with the source lines of
// its fields and dependencies, so validation errors can point at them.
type Document struct {
	Form  *ir.Form
	Path  string
	lines map[string]int
}

// Validate runs Validate on the form and fills in source lines.
func (d *Document) Validate() []ValidationError {
	errs := Validate(d.Form)
	for i := range errs {
		errs[i].Line = d.Line(errs[i].Field)
	}
	return errs
}

// Line returns the source line of the closest declared element of path,
// e.g. "dependencies[2].actions[0].type" resolves to the line of
// dependencies[2]. Returns 0 when unknown.
func (d *Document) Line(path string) int {
	for p := path; p != ""; {
		if line, ok := d.lines[p]; ok {
			return line
		}
		i := strings.LastIndexAny(p, ".[")
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return 0
}

// ParseYAML decodes a form document. Unknown keys are rejected.
func ParseYAML(data []byte) (*Document, error) {
	var yf yamlForm
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&yf); err != nil {
		if goerrors.Is(err, io.EOF) {
			return nil, &CompileError{Field: "yaml", Message: "empty document"}
		}
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}

	form := &ir.Form{Name: yf.Name, Fields: yf.Fields}
	for i := range form.Fields {
		form.Fields[i].Value = ir.Normalize(form.Fields[i].Value)
		for j := range form.Fields[i].Options {
			form.Fields[i].Options[j].Value = ir.Normalize(form.Fields[i].Options[j].Value)
		}
	}
	for _, yd := range yf.Dependencies {
		form.Dependencies = append(form.Dependencies, yd.toDependency())
	}
	normalize(form)

	return &Document{Form: form, lines: sourceLines(&root)}, nil
}

func (yd yamlDependency) toDependency() ir.FieldDependency {
	d := yd.FieldDependency
	d.Enabled = yd.Enabled == nil || *yd.Enabled
	if d.Trigger == "" {
		d.Trigger = ir.TriggerChange
	}
	for i := range d.Conditions {
		c := &d.Conditions[i]
		c.LogicalOperator = ir.LogicalOperator(strings.ToUpper(string(c.LogicalOperator)))
		c.Value = ir.Normalize(c.Value)
	}
	for i := range d.Actions {
		d.Actions[i].Value = ir.Normalize(d.Actions[i].Value)
		for j := range d.Actions[i].Options {
			d.Actions[i].Options[j].Value = ir.Normalize(d.Actions[i].Options[j].Value)
		}
	}
	return d
}

// LoadYAML reads and decodes a form document from path.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	doc, err := ParseYAML(data)
	if err != nil {
		var ce *CompileError
		if goerrors.As(err, &ce) {
			ce.Field = path + ": " + ce.Field
		}
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Load compiles a form from a .yaml/.yml file or a directory of .cue files.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}

	if info.IsDir() {
		form, err := LoadDir(path)
		if err != nil {
			return nil, err
		}
		return &Document{Form: form, Path: path}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read form: %w", err)
		}
		form, err := CompileString(path, string(data))
		if err != nil {
			return nil, err
		}
		return &Document{Form: form, Path: path}, nil
	default:
		return nil, fmt.Errorf("load form: unsupported file type %q (want .yaml, .yml, .cue or a directory)", filepath.Ext(path))
	}
}

// sourceLines indexes the line of each entry under fields and dependencies,
// and of each nested condition and action.
func sourceLines(root *yaml.Node) map[string]int {
	lines := make(map[string]int)
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return lines
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return lines
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i].Value, top.Content[i+1]
		if key != "fields" && key != "dependencies" {
			continue
		}
		lines[key] = top.Content[i].Line
		indexSequence(lines, key, val)
	}
	return lines
}

func indexSequence(lines map[string]int, prefix string, seq *yaml.Node) {
	if seq.Kind != yaml.SequenceNode {
		return
	}
	for i, item := range seq.Content {
		path := fmt.Sprintf("%s[%d]", prefix, i)
		lines[path] = item.Line
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			k := item.Content[j]
			lines[path+"."+k.Value] = k.Line
			if k.Value == "conditions" || k.Value == "actions" {
				indexSequence(lines, path+"."+k.Value, item.Content[j+1])
			}
		}
	}
}

// MarshalYAML encodes a form in the document layout ParseYAML reads.
// Disabled dependencies are written with enabled: false; enabled ones omit
// the key.
func MarshalYAML(form *ir.Form) ([]byte, error) {
	yf := yamlForm{Name: form.Name, Fields: form.Fields}
	for _, d := range form.Dependencies {
		yd := yamlDependency{FieldDependency: d}
		if !d.Enabled {
			disabled := false
			yd.Enabled = &disabled
		}
		yf.Dependencies = append(yf.Dependencies, yd)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yf); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	return buf.Bytes(), nil
}

// FindYAMLFiles returns the .yaml and .yml files directly under dir, sorted.
func FindYAMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
