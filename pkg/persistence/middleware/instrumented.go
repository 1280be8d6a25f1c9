package middleware

import (
	"context"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
)

// CheckpointObserver receives the outcome of every store operation.
type CheckpointObserver interface {
	ObserveCheckpoint(op string, err error)
}

type instrumented struct {
	next     ports.CheckpointStore
	observer CheckpointObserver
}

// NewInstrumentedMiddleware reports each Save, Load, Delete and List to o.
func NewInstrumentedMiddleware(o CheckpointObserver) Middleware {
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &instrumented{next: next, observer: o}
	}
}

func (m *instrumented) Save(ctx context.Context, sessionID string, state *domain.ConversationState) error {
	err := m.next.Save(ctx, sessionID, state)
	m.observer.ObserveCheckpoint("save", err)
	return err
}

func (m *instrumented) Load(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	st, err := m.next.Load(ctx, sessionID)
	m.observer.ObserveCheckpoint("load", err)
	return st, err
}

func (m *instrumented) Delete(ctx context.Context, sessionID string) error {
	err := m.next.Delete(ctx, sessionID)
	m.observer.ObserveCheckpoint("delete", err)
	return err
}

func (m *instrumented) List(ctx context.Context) ([]string, error) {
	ids, err := m.next.List(ctx)
	m.observer.ObserveCheckpoint("list", err)
	return ids, err
}
