package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/orderbot/pkg/adapters/sqlite"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "orderbot.db"))
	require.NoError(t, err)
	store, err := sqlite.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, openStore(t))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	store, err := sqlite.NewStore(db)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "m", &domain.ConversationState{SessionID: "m", Version: 1}))
	got, err := store.Load(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "m", got.SessionID)
}

func TestSQLiteStore_Closed(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Close())

	_, err := store.Load(context.Background(), "x")
	assert.ErrorIs(t, err, sqlite.ErrStoreClosed)
	err = store.Save(context.Background(), "x", &domain.ConversationState{Version: 1})
	assert.ErrorIs(t, err, sqlite.ErrStoreClosed)
}
