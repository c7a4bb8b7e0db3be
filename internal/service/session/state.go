// Package session tracks which plates were already submitted during this run.
package session

import (
	"sort"
	"sync"
)

type State struct {
	mu       sync.Mutex
	recorded map[string]struct{}
}

func NewState() *State {
	return &State{recorded: make(map[string]struct{})}
}

// TryRecord adds plate and returns true if it was not recorded yet. Callers
// that get true should submit the plate and Release it on failure.
func (s *State) TryRecord(plate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recorded[plate]; ok {
		return false
	}
	s.recorded[plate] = struct{}{}
	return true
}

// Release forgets plate so it can be submitted again.
func (s *State) Release(plate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recorded, plate)
}

func (s *State) IsRecorded(plate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recorded[plate]
	return ok
}

// Reset clears the whole set.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = make(map[string]struct{})
}

// Plates returns the recorded plates sorted.
func (s *State) Plates() []string {
	s.mu.Lock()
	plates := make([]string, 0, len(s.recorded))
	for plate := range s.recorded {
		plates = append(plates, plate)
	}
	s.mu.Unlock()

	sort.Strings(plates)
	return plates
}
