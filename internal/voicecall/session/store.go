package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrSessionNotFound = errors.New("call session not found")
	ErrSessionExists   = errors.New("call session already exists")
)

// Store maps stream identifiers to live call sessions. It is shared by every
// bridge in the process but each session is only ever touched by the bridge
// that created it, even after a later start has replaced it in the store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
}

// NewStore creates an empty session registry.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*CallSession),
	}
}

// Create registers a fresh session for id. It fails with ErrSessionExists if
// the id is already registered, leaving the existing session untouched.
func (s *Store) Create(id string) (*CallSession, error) {
	if id == "" {
		return nil, fmt.Errorf("create session: empty stream id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return nil, fmt.Errorf("create session %s: %w", id, ErrSessionExists)
	}
	cs := New(id)
	s.sessions[id] = cs
	return cs, nil
}

// Replace registers a fresh session for id, discarding any previous one.
func (s *Store) Replace(id string) *CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := New(id)
	s.sessions[id] = cs
	return cs
}

// Get returns the session registered for id.
func (s *Store) Get(id string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, ErrSessionNotFound)
	}
	return cs, nil
}

// Remove drops cs from the store if it is still the session registered under
// its id. A session that has been replaced leaves the newer one in place.
func (s *Store) Remove(cs *CallSession) bool {
	if cs == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[cs.ID] != cs {
		return false
	}
	delete(s.sessions, cs.ID)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
