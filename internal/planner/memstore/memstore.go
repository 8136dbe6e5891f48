// Package memstore provides an in-memory implementation of planner.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/sift/internal/planner"
)

// Store holds triage runs in memory. Suitable for dev/testing.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*planner.Run // run ID -> run
	seen map[string]string       // incident ID -> latest run ID (dedup)
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		runs: make(map[string]*planner.Run),
		seen: make(map[string]string),
	}
}

// Get retrieves a triage run by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*planner.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// GetByIncident retrieves the latest triage run for an incident, for
// deduplication. Returns a copy.
func (s *Store) GetByIncident(_ context.Context, incidentID string) (*planner.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[incidentID]
	if !ok {
		return nil, false, nil
	}
	r := s.runs[id]
	cp := *r
	return &cp, true, nil
}

// Put stores a copy of the triage run.
func (s *Store) Put(_ context.Context, r *planner.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	s.seen[r.IncidentID] = r.ID
	return nil
}
