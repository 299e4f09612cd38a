package session

import (
	"sort"
	"sync"
)

// InMemoryStore is a volatile Store keeping sessions in a process local map.
// It is safe for concurrent access. Sessions are shared, not cloned: their
// transcripts carry their own synchronisation.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Get returns an existing session.
func (s *InMemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, ErrNotFound
}

// GetOrCreate returns an existing session or creates a new one lazily.
func (s *InMemoryStore) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		id = DefaultID
	}
	if sess, err := s.Get(id); err == nil {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have won the race between the two locks.
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return s.createLocked(id), nil
}

// Create registers a new session.
func (s *InMemoryStore) Create(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, ok := s.sessions[id]; ok {
			return nil, ErrAlreadyExists
		}
	}
	return s.createLocked(id), nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List returns the session ids in lexical order.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// createLocked allocates and stores a new session; caller must hold the write lock.
func (s *InMemoryStore) createLocked(id string) *Session {
	sess := New(id)
	s.sessions[sess.ID] = sess
	return sess
}
