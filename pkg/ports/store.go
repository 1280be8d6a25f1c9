package ports

import (
	"context"

	"github.com/aretw0/orderbot/pkg/domain"
)

// CheckpointStore defines the interface for persisting conversation checkpoints.
// This is what lets a session suspend at AwaitInput and resume on a later request.
type CheckpointStore interface {
	// Save persists the state for a given session ID.
	// It is a compare-and-set on state.Version: the stored version must be
	// state.Version-1 (or absent when state.Version is 1), otherwise
	// domain.ErrVersionConflict is returned and nothing is written.
	Save(ctx context.Context, sessionID string, state *domain.ConversationState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.ConversationState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// CheckVersion applies the Save compare-and-set rule given the currently stored
// version (0 when absent).
func CheckVersion(stored int64, exists bool, next *domain.ConversationState) error {
	if !exists {
		stored = 0
	}
	if next.Version != stored+1 {
		return domain.ErrVersionConflict
	}
	return nil
}
