package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[string]*domain.WizardSnapshot
	mu   sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.WizardSnapshot),
	}
}

func copySnapshot(snap *domain.WizardSnapshot) *domain.WizardSnapshot {
	c := *snap
	c.Answers = snap.Answers.Clone()
	c.History = slices.Clone(snap.History)
	return &c
}

// Save persists a copy of the snapshot.
func (s *SessionStore) Save(ctx context.Context, sessionID string, snap *domain.WizardSnapshot) error {
	copied := copySnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves a copy of the snapshot so callers can't mutate the store.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySnapshot(snap), nil
}

// Delete removes the snapshot.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	slices.Sort(sessions)
	return sessions, nil
}
