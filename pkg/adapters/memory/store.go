package memory

import (
	"context"
	"sync"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use. Checkpoints live as long as the process.
type Store struct {
	data map[string]*domain.ConversationState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ConversationState),
	}
}

// Save persists a copy of the state, enforcing the version compare-and-set.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.ConversationState) error {
	if sessionID == "" {
		return domain.ErrEmptySessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	current, exists := s.data[sessionID]
	if exists {
		stored = current.Version
	}
	if err := ports.CheckVersion(stored, exists, state); err != nil {
		return err
	}

	s.data[sessionID] = state.Clone()
	return nil
}

// Load retrieves a copy of the state so callers can't mutate the store by pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
