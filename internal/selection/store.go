// Package selection tracks which devices an operator has picked as
// broadcast recipients.
package selection

import (
	"sort"
	"sync"
)

// Store is a set of recipient ids (push tokens). All methods are safe for
// concurrent use and serialized, so no toggle is lost. The zero value is an
// empty selection.
type Store struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New creates an empty selection.
func New() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Toggle adds id if absent and removes it if present. It returns whether id
// is selected afterwards.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
	return true
}

// Contains reports whether id is selected.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Snapshot returns the selected ids in sorted order.
func (s *Store) Snapshot() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of selected ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Clear deselects everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// Retain drops every selected id not in keep and returns how many were
// dropped. Used when devices disappear from the live list.
func (s *Store) Retain(keep []string) int {
	allowed := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		allowed[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id := range s.ids {
		if _, ok := allowed[id]; !ok {
			delete(s.ids, id)
			dropped++
		}
	}
	return dropped
}
