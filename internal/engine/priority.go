package engine

import "github.com/roach88/formdeps/internal/ir"

// ResolvePriority keeps one winning mutation per conflict key.
//
// The winner has the highest priority; ties go to the dependency declared
// first. Between two actions of the same dependency the later one wins, so a
// dependency can overwrite itself. Losers are dropped without diagnostics.
//
// Input must list each dependency's mutations in action order. The output
// keeps the position of each key's first appearance.
func ResolvePriority(muts []ir.Mutation) []ir.Mutation {
	slot := make(map[string]int, len(muts))
	out := make([]ir.Mutation, 0, len(muts))

	for _, m := range muts {
		key := m.ConflictKey()
		i, taken := slot[key]
		if !taken {
			slot[key] = len(out)
			out = append(out, m)
			continue
		}
		if outranks(m, out[i]) {
			out[i] = m
		}
	}
	return out
}

// outranks reports whether challenger should replace holder.
func outranks(challenger, holder ir.Mutation) bool {
	if challenger.Priority != holder.Priority {
		return challenger.Priority > holder.Priority
	}
	if challenger.Order != holder.Order {
		return challenger.Order < holder.Order
	}
	return true
}
