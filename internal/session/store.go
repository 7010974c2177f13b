package session

import (
	"sync"
	"time"
)

// Store defines the interface for session state storage
type Store interface {
	// Get retrieves a session by ID, or ErrNotFound
	Get(id string) (State, error)

	// Save creates or replaces a session
	Save(s State) error

	// Delete removes a session. Deleting an unknown ID is not an error.
	Delete(id string) error

	// DeleteOlderThan removes sessions last updated before cutoff and returns their IDs
	DeleteOlderThan(cutoff time.Time) ([]string, error)

	// Close releases the store
	Close() error
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]State
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]State)}
}

func (m *MemoryStore) Get(id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	return expired, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
