package harness

import (
	"time"

	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/ir"
)

// Report is the outcome of testing one dependency against a snapshot.
//
// Diff holds the mutations that would change the snapshot, after priority
// resolution among the dependency's own actions. Nothing is applied to the
// caller's snapshot.
type Report struct {
	DependencyID  string          `json:"dependencyId"`
	Result        ir.TestResult   `json:"result"`
	ConditionsMet bool            `json:"conditionsMet"`
	Diff          []ir.Mutation   `json:"diff"`
	Events        []ir.Event      `json:"events,omitempty"`
	Diagnostics   []ir.Diagnostic `json:"diagnostics,omitempty"`
	TestedAt      time.Time       `json:"testedAt"`
}

// Tester runs single dependencies in a sandbox: the snapshot is cloned,
// nothing propagates and no registry is involved.
type Tester struct {
	now func() time.Time
}

// TesterOption configures a Tester.
type TesterOption func(*Tester)

// WithNow replaces the clock used for TestedAt and LastTested.
func WithNow(now func() time.Time) TesterOption {
	return func(t *Tester) { t.now = now }
}

// NewTester creates a Tester.
func NewTester(opts ...TesterOption) *Tester {
	t := &Tester{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Test evaluates dep against snap and records LastTested and TestResult on
// dep. Disabled dependencies are tested like enabled ones.
//
// The result is error when any condition or action reported a diagnostic
// or the source or target field is missing, pass when the conditions hold,
// fail otherwise.
func (t *Tester) Test(dep *ir.FieldDependency, snap ir.Snapshot) Report {
	return t.test(dep, 0, snap)
}

// TestAll tests every dependency in deps independently, writing results
// back into the slice. Declaration order decides ties between a
// dependency's own actions only; dependencies never meet each other here.
func (t *Tester) TestAll(deps []ir.FieldDependency, snap ir.Snapshot) []Report {
	reports := make([]Report, len(deps))
	for i := range deps {
		reports[i] = t.test(&deps[i], i, snap)
	}
	return reports
}

func (t *Tester) test(dep *ir.FieldDependency, order int, snap ir.Snapshot) Report {
	sandbox := snap.Clone()
	rep := Report{
		DependencyID: dep.ID,
		Diff:         []ir.Mutation{},
		TestedAt:     t.now().UTC(),
	}

	for _, id := range []string{dep.SourceFieldID, dep.TargetFieldID} {
		if _, ok := sandbox[id]; !ok {
			rep.Diagnostics = append(rep.Diagnostics, ir.MissingField(dep.ID, id))
		}
	}

	met, diags := engine.ResolveConditions(dep, sandbox)
	rep.ConditionsMet = met
	rep.Diagnostics = append(rep.Diagnostics, diags...)

	// Actions are dispatched even when the conditions fail so malformed
	// actions surface as errors.
	muts, events, diags := engine.Dispatch(dep, order, sandbox)
	rep.Diagnostics = append(rep.Diagnostics, diags...)

	if met {
		for _, m := range engine.ResolvePriority(muts) {
			if sandbox.Apply(m) {
				rep.Diff = append(rep.Diff, m)
			}
		}
		rep.Events = events
	}

	rep.Diagnostics = dedupeMissing(rep.Diagnostics)

	switch {
	case len(rep.Diagnostics) > 0:
		rep.Result = ir.TestError
	case met:
		rep.Result = ir.TestPass
	default:
		rep.Result = ir.TestFail
	}

	tested := rep.TestedAt
	dep.LastTested = &tested
	dep.TestResult = rep.Result
	return rep
}

// dedupeMissing keeps the first MissingFieldReference per field. A missing
// source is reported by the pre-check and again by every condition on it.
func dedupeMissing(diags []ir.Diagnostic) []ir.Diagnostic {
	seen := make(map[string]bool)
	out := diags[:0]
	for _, d := range diags {
		if d.Code == ir.DiagMissingFieldReference {
			if seen[d.FieldID] {
				continue
			}
			seen[d.FieldID] = true
		}
		out = append(out, d)
	}
	return out
}
