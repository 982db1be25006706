// Package harness provides the dependency test mode and conformance
// scenarios for the formdeps engine.
//
// # Test Mode
//
// Tester runs one dependency (or each of a list) against an injected
// snapshot without touching a registry and without propagation, and
// reports pass, fail or error. It writes LastTested and TestResult onto the
// dependency and nothing else.
//
// # Scenario Format
//
// Scenarios drive the real engine through a sequence of triggers. They are
// defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	form: ../forms/checkout.yaml
//	values:
//	  country: CA
//	steps:
//	  - set: { country: US }
//	    trigger: { field: country, kind: change }
//	assertions:
//	  - type: mutation_contains
//	    field: state
//	    kind: visibility
//	    flag: true
//	  - type: final_state
//	    field: state
//	    expect: { visible: true }
//	properties: [idempotent, bounded]
//
// # Assertion Types
//
//   - mutation_contains: an applied mutation matches the filter
//   - mutation_absent: no applied mutation matches the filter
//   - mutation_count: exactly count applied mutations match the filter
//   - diagnostic_contains: a diagnostic with code (naming fields) was reported
//   - event_contains: an event with the given name was emitted
//   - final_value: a field's final value
//   - final_state: a subset of a field's final state
//
// Pass assertions accept step to look at a single step only.
//
// # Deterministic Testing
//
// Pass ids come from a sequence generator ("pass-1", "pass-2", ...) and
// delayed events fire from a virtual timer in delay order once the step's
// queue is drained, so traces are identical across runs and can be
// compared with golden files.
package harness
