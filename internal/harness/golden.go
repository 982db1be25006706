package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/formdeps/internal/ir"
)

// TraceSnapshot captures the complete pass trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Passes       []PassRecord `json:"passes"`
	Delivered    []ir.Event   `json:"delivered"`
	Final        ir.Snapshot  `json:"final"`
}

func (s *TraceSnapshot) canonicalJSON() ([]byte, error) {
	return ir.CanonicalJSON(s)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running. opts are applied
// after the default fixture directory and suffix.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Passes:       result.Passes,
		Delivered:    result.Delivered,
		Final:        result.Final,
	}

	traceJSON, err := snapshot.canonicalJSON()
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
