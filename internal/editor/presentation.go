package editor

import (
	"sort"
	"strings"
)

// Expand marks a dependency row as expanded. Unknown ids are ignored.
func (s *Store) Expand(id string) {
	s.setExpanded(id, true)
}

// Collapse marks a dependency row as collapsed.
func (s *Store) Collapse(id string) {
	s.setExpanded(id, false)
}

// Toggle flips a row and returns its new state.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return false
	}
	s.expanded[id] = !s.expanded[id]
	if !s.expanded[id] {
		delete(s.expanded, id)
	}
	return s.expanded[id]
}

// IsExpanded reports whether a row is expanded.
func (s *Store) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[id]
}

// Expanded returns the expanded ids, sorted.
func (s *Store) Expanded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CollapseAll clears every expanded row.
func (s *Store) CollapseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.expanded)
}

func (s *Store) setExpanded(id string, expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return
	}
	if expanded {
		s.expanded[id] = true
	} else {
		delete(s.expanded, id)
	}
}

// BeginRename starts inline renaming of a dependency. Only one row is
// renamed at a time; starting another cancels the first.
func (s *Store) BeginRename(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return &NotFoundError{ID: id}
	}
	s.renaming = id
	return nil
}

// Renaming returns the id being renamed, or "".
func (s *Store) Renaming() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renaming
}

// CancelRename ends renaming without changes.
func (s *Store) CancelRename() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renaming = ""
}

// CommitRename stores the trimmed name on the dependency being renamed.
// A blank name cancels without changes.
func (s *Store) CommitRename(name string) error {
	s.mu.Lock()
	id := s.renaming
	s.renaming = ""
	s.mu.Unlock()

	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil
	}
	return s.Rename(id, name)
}

// Rename sets a dependency's display name.
func (s *Store) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	next := cloneAll(s.deps)
	next[i].Name = strings.TrimSpace(name)
	return s.commit(next)
}
