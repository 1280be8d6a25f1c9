package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000000")

	newState := func(id string) *domain.ConversationState {
		s := domain.NewConversationState(id, "Lê Hoàng")
		s.Version = 1
		s.CurrentNode = domain.NodeAwaitInput
		s.Status = domain.StatusSuspended
		s.Catalog = []domain.MenuItem{{ID: 1, Title: "Phở", Price: 50000}}
		s.Transcript = []domain.Turn{domain.SystemTurn("menu"), domain.AssistantTurn("Chào Hoàng!")}
		return s
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := newState(sessionID)
		state.Cart = []domain.CartLine{{ItemID: 1, Title: "Phở", UnitPrice: 50000, Quantity: 2}}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentNode, loaded.CurrentNode)
		assert.Equal(t, state.Version, loaded.Version)
		assert.Equal(t, state.Transcript, loaded.Transcript)
		assert.Equal(t, state.Cart, loaded.Cart)
		assert.Equal(t, "Lê Hoàng", loaded.UserName)
	})

	t.Run("Load Is Isolated From Caller Mutation", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Cart = append(loaded.Cart, domain.CartLine{ItemID: 9})

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.Cart, 1)
	})

	t.Run("Version Conflict", func(t *testing.T) {
		stale := newState(sessionID) // version 1 again
		err := store.Save(ctx, sessionID, stale)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		skipped := newState(sessionID)
		skipped.Version = 5
		err = store.Save(ctx, sessionID, skipped)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		next := newState(sessionID)
		next.Version = 2
		next.LastIntent = domain.IntentBuy
		require.NoError(t, store.Save(ctx, sessionID, next))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
		assert.Equal(t, domain.IntentBuy, loaded.LastIntent)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		// A deleted session starts over at version 1.
		require.NoError(t, store.Save(ctx, sessionID, newState(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, newState(id1)))
		require.NoError(t, store.Save(ctx, id2, newState(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
