// Package ir provides the data model shared by every formdeps package.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Dependencies, conditions and actions are plain tagged data, no closures
//   - Field values are JSON-like: nil, string, float64, bool, []any, map[string]any
//   - FieldDependency.LastTested and TestResult are written only by the test harness
//   - All JSON and YAML tags use camelCase to match form documents
package ir
