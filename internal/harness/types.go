package harness

import "github.com/roach88/formdeps/internal/ir"

// PassRecord is one evaluation pass together with the step that caused it.
// Event re-entries are recorded under the step whose pass raised them.
type PassRecord struct {
	Step   int       `json:"step"`
	Result ir.Result `json:"result"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions and properties hold.
	Pass bool `json:"pass"`

	// Passes lists every pass in processing order.
	Passes []PassRecord `json:"passes"`

	// Delivered lists events in the order the sink received them.
	Delivered []ir.Event `json:"delivered"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the registry snapshot after the last step.
	Final ir.Snapshot `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Passes:    []PassRecord{},
		Delivered: []ir.Event{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPass records a pass for step.
func (r *Result) AddPass(step int, res ir.Result) {
	r.Passes = append(r.Passes, PassRecord{Step: step, Result: res})
}

// mutations returns the applied mutations, optionally limited to one step.
func (r *Result) mutations(step *int) []ir.Mutation {
	var out []ir.Mutation
	for _, p := range r.Passes {
		if step == nil || p.Step == *step {
			out = append(out, p.Result.Mutations...)
		}
	}
	return out
}

func (r *Result) diagnostics(step *int) []ir.Diagnostic {
	var out []ir.Diagnostic
	for _, p := range r.Passes {
		if step == nil || p.Step == *step {
			out = append(out, p.Result.Diagnostics...)
		}
	}
	return out
}

func (r *Result) events(step *int) []ir.Event {
	var out []ir.Event
	for _, p := range r.Passes {
		if step == nil || p.Step == *step {
			out = append(out, p.Result.Events...)
		}
	}
	return out
}
