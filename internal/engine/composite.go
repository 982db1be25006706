package engine

import "github.com/roach88/formdeps/internal/ir"

// ResolveConditions folds a dependency's conditions left to right.
//
// Each condition's logical operator joins it to the running result; the first
// condition's operator is ignored and an empty operator means AND. There is no
// precedence grouping: [a AND b OR c] is ((a AND b) OR c).
//
// Short-circuiting fixes the running result but every condition is still
// evaluated so diagnostics are complete. An empty list is true.
func ResolveConditions(dep *ir.FieldDependency, snap ir.Snapshot) (bool, []ir.Diagnostic) {
	result := true
	var diags []ir.Diagnostic

	for i, c := range dep.Conditions {
		ok, d := EvaluateCondition(c, dep, snap)
		diags = append(diags, d...)

		if i == 0 {
			result = ok
			continue
		}

		switch c.LogicalOperator {
		case ir.LogicalOr:
			if !result {
				result = ok
			}
		default:
			if result {
				result = ok
			}
		}
	}

	return result, diags
}
