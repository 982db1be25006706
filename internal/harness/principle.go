package harness

import (
	"fmt"
	"path/filepath"

	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/graph"
)

// CheckProperties verifies engine guarantees over a finished scenario run.
// Returns one message per violated property.
//
//   - idempotent: re-evaluating the last trigger against the final state
//     proposes no mutations
//   - bounded: no pass ran more propagation levels than the form has fields
func CheckProperties(result *Result, properties []string, g *graph.Graph, fieldCount int) []string {
	var errors []string

	for _, p := range properties {
		switch p {
		case PropertyIdempotent:
			if err := checkIdempotent(result, g); err != nil {
				errors = append(errors, err.Error())
			}
		case PropertyBounded:
			if err := checkBounded(result, fieldCount); err != nil {
				errors = append(errors, err.Error())
			}
		default:
			errors = append(errors, fmt.Sprintf("unknown property %q", p))
		}
	}

	return errors
}

func checkIdempotent(result *Result, g *graph.Graph) error {
	if len(result.Passes) == 0 {
		return nil
	}
	last := result.Passes[len(result.Passes)-1]

	again := engine.Evaluate(g, last.Result.Trigger, result.Final)
	if len(again.Mutations) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     PropertyIdempotent,
		Expected: fmt.Sprintf("no mutations when re-evaluating %s on %q", last.Result.Trigger.Kind, last.Result.Trigger.FieldID),
		Actual:   fmt.Sprintf("%d mutation(s), first: %s", len(again.Mutations), describeMutation(again.Mutations[0])),
	}
}

func checkBounded(result *Result, fieldCount int) error {
	for _, p := range result.Passes {
		if p.Result.Levels > fieldCount {
			return &AssertionError{
				Type:     PropertyBounded,
				Expected: fmt.Sprintf("at most %d propagation levels", fieldCount),
				Actual:   fmt.Sprintf("pass %s ran %d levels", p.Result.PassID, p.Result.Levels),
			}
		}
	}
	return nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure records why one scenario did not pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path,omitempty"`
	Errors   []string `json:"errors"`
}

// RunSuite loads and runs every scenario in dir whose name matches the
// glob filter (empty matches all). A scenario that fails to load or run
// counts as failed; RunSuite itself only errors when dir cannot be read.
func RunSuite(dir, filter string) (*SuiteResult, error) {
	scenarios, err := LoadScenarios(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{}
	for _, s := range scenarios {
		if filter != "" {
			ok, err := filepath.Match(filter, s.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}

		suite.Total++
		res, err := Run(s)
		switch {
		case err != nil:
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{
				Scenario: s.Name,
				Path:     s.Form,
				Errors:   []string{fmt.Sprintf("scenario execution failed: %v", err)},
			})
		case !res.Pass:
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{
				Scenario: s.Name,
				Path:     s.Form,
				Errors:   res.Errors,
			})
		default:
			suite.Passed++
		}
	}
	return suite, nil
}
