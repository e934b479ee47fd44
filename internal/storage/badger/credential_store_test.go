package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/g2i/hub/internal/interfaces"
)

func setupTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestCredentialStoreSetGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewCredentialStore(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cookies_status", "processing", 0))

	value, err := store.Get(ctx, "cookies_status")
	require.NoError(t, err)
	assert.Equal(t, "processing", value)
}

func TestCredentialStoreGetMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewCredentialStore(db, arbor.NewLogger())

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestCredentialStoreTTLExpiry(t *testing.T) {
	db := setupTestDB(t)
	store := NewCredentialStore(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cookies", "[]", 50*time.Millisecond))

	value, err := store.Get(ctx, "cookies")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	time.Sleep(100 * time.Millisecond)

	_, err = store.Get(ctx, "cookies")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestCredentialStoreDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewCredentialStore(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cookies_error", "boom", 0))
	require.NoError(t, store.Delete(ctx, "cookies_error"))

	_, err := store.Get(ctx, "cookies_error")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, store.Delete(ctx, "cookies_error"))
}

func TestCredentialStoreOverwrite(t *testing.T) {
	db := setupTestDB(t)
	store := NewCredentialStore(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cookies_status", "processing", 0))
	require.NoError(t, store.Set(ctx, "cookies_status", "complete", 0))

	value, err := store.Get(ctx, "cookies_status")
	require.NoError(t, err)
	assert.Equal(t, "complete", value)
}
