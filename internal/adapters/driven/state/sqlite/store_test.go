package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetAccountState(ctx, "example")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetAccountState(ctx, &domain.AccountState{
		Account:   "example",
		SinceID:   "100",
		UpdatedAt: now,
	}))

	state, err := store.GetAccountState(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, "example", state.Account)
	assert.Equal(t, "100", state.SinceID)
	assert.True(t, state.UpdatedAt.Equal(now))
}

func TestAccountStateUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetAccountState(ctx, &domain.AccountState{
		Account: "example", SinceID: "100", UpdatedAt: time.Now(),
	}))
	require.NoError(t, store.SetAccountState(ctx, &domain.AccountState{
		Account: "example", SinceID: "200", UpdatedAt: time.Now(),
	}))

	state, err := store.GetAccountState(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, "200", state.SinceID)
}

func TestRecordPublishedAndIsProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "post1", "hashA")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.RecordPublished(ctx, &domain.PublishedRecord{
		ID:           "rec1",
		SourcePostID: "post1",
		TaxonomyHash: "hashA",
		XPostID:      "x1",
		PublishedAt:  time.Now(),
	}))

	processed, err = store.IsProcessed(ctx, "post1", "hashA")
	require.NoError(t, err)
	assert.True(t, processed)

	// Same post under a different taxonomy hash is unprocessed.
	processed, err = store.IsProcessed(ctx, "post1", "hashB")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRecordPublishedConflictKeepsNonEmptyIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordPublished(ctx, &domain.PublishedRecord{
		ID:           "rec1",
		SourcePostID: "post1",
		TaxonomyHash: "hashA",
		XPostID:      "x1",
		PublishedAt:  time.Now(),
	}))

	// A retry that only reached Nostr must not erase the X post ID.
	require.NoError(t, store.RecordPublished(ctx, &domain.PublishedRecord{
		ID:           "rec2",
		SourcePostID: "post1",
		TaxonomyHash: "hashA",
		NostrEventID: "n1",
		PublishedAt:  time.Now(),
	}))

	record, err := store.GetPublished(ctx, "post1", "hashA")
	require.NoError(t, err)
	assert.Equal(t, "rec1", record.ID)
	assert.Equal(t, "x1", record.XPostID)
	assert.Equal(t, "n1", record.NostrEventID)
}

func TestGetPublishedNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPublished(context.Background(), "missing", "hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetAccountState(context.Background(), &domain.AccountState{
		Account: "example", SinceID: "1", UpdatedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	// Reopening runs the migration check again without clobbering data.
	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	state, err := store.GetAccountState(context.Background(), "example")
	require.NoError(t, err)
	assert.Equal(t, "1", state.SinceID)
}
