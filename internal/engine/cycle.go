package engine

// visitedSet is the runtime cycle guard for one top-level pass.
//
// A field is visited when its outgoing dependencies are evaluated. A value
// mutation aimed at a visited field is still applied but never re-enters
// propagation. Each field is evaluated at most once per pass, which bounds
// propagation by the field count no matter how the enabled dependencies are
// wired.
//
// Every queued field remembers the field whose dependencies queued it. A
// blocked write is refused, and later reported, only when its target is on
// that chain: the writer itself or one of its ancestors.
//
// The set is created fresh for every top-level trigger and is never shared
// between passes, so it needs no locking.
type visitedSet struct {
	order   []string
	seen    map[string]bool
	queued  map[string]bool
	parent  map[string]string
	refused []string
}

func newVisitedSet() *visitedSet {
	return &visitedSet{
		seen:   make(map[string]bool),
		queued: make(map[string]bool),
		parent: make(map[string]string),
	}
}

// Visit marks a field as evaluated. It reports false if it already was.
func (v *visitedSet) Visit(fieldID string) bool {
	if v.seen[fieldID] {
		return false
	}
	v.seen[fieldID] = true
	v.order = append(v.order, fieldID)
	return true
}

// Seen reports whether fieldID has been evaluated in this pass.
func (v *visitedSet) Seen(fieldID string) bool {
	return v.seen[fieldID]
}

// Queue marks a field as scheduled for the next propagation level on behalf
// of from. It reports false if the field is already scheduled or was
// evaluated.
func (v *visitedSet) Queue(fieldID, from string) bool {
	if v.seen[fieldID] || v.queued[fieldID] {
		return false
	}
	v.queued[fieldID] = true
	v.parent[fieldID] = from
	return true
}

// OnChain reports whether target is from or one of the fields that queued it.
func (v *visitedSet) OnChain(from, target string) bool {
	for id, ok := from, true; ok; id, ok = v.parent[id] {
		if id == target {
			return true
		}
	}
	return false
}

// Refuse records a blocked re-entry. Repeats are collapsed.
func (v *visitedSet) Refuse(fieldID string) {
	for _, id := range v.refused {
		if id == fieldID {
			return
		}
	}
	v.refused = append(v.refused, fieldID)
}

// Order returns evaluated fields in visit order.
func (v *visitedSet) Order() []string {
	return v.order
}

// Refused returns refused fields in first-refusal order.
func (v *visitedSet) Refused() []string {
	return v.refused
}
