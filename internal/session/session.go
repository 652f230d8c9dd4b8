// Package session holds state scoped to the current browser session.
//
// It is in-memory only: when the daemon restarts the cooldown is
// gone, so a fresh session starts with interventions enabled. Only the
// last-intervention timestamp lives here; everything durable belongs to
// internal/storage.
package session

import (
	"sync"
	"time"
)

// Store is the volatile session-scoped store.
type Store struct {
	mu               sync.Mutex
	lastIntervention time.Time
	set              bool
}

// New creates an empty session store.
func New() *Store {
	return &Store{}
}

// LastIntervention returns the timestamp of the most recent dispatch and
// whether one has been recorded this session.
func (s *Store) LastIntervention() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIntervention, s.set
}

// SetLastIntervention records a dispatch, starting a new cooldown window.
func (s *Store) SetLastIntervention(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIntervention = t
	s.set = true
}

// ClearLastIntervention removes the cooldown, re-arming detection
// immediately. Called on confirmed user compliance.
func (s *Store) ClearLastIntervention() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIntervention = time.Time{}
	s.set = false
}
