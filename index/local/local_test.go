package local

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	store := New(backend)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeEntries(doc core.DocumentID, n int) []index.Entry {
	entries := make([]index.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, index.Entry{
			ID:         core.ChunkID(doc, i),
			Document:   doc,
			Ordinal:    i,
			Text:       "chunk text",
			Vector:     []float32{float32(i), 1, 0},
			IngestedAt: time.Now().UTC().Truncate(time.Microsecond),
		})
	}
	return entries
}

func TestStore_ExistsAbsentIsNotError(t *testing.T) {
	store := setupStore(t)

	present, err := store.Exists(context.Background(), []string{"no-such-id"})
	require.NoError(t, err)
	assert.Empty(t, present)
}

func TestStore_UpsertExistsDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entries := makeEntries("a.pdf", 3)
	require.NoError(t, store.Upsert(ctx, entries))

	ids := []string{entries[0].ID, entries[1].ID, entries[2].ID, "missing"}
	present, err := store.Exists(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, present, 3)
	assert.False(t, present["missing"])

	require.NoError(t, store.Delete(ctx, []string{entries[1].ID}))

	present, err = store.Exists(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, present, 2)
	assert.True(t, present[entries[0].ID])
	assert.True(t, present[entries[2].ID])

	// Deleting an absent identity is a no-op.
	require.NoError(t, store.Delete(ctx, []string{entries[1].ID}))
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entries := makeEntries("a.pdf", 2)
	require.NoError(t, store.Upsert(ctx, entries))
	require.NoError(t, store.Upsert(ctx, entries))

	fetched, err := store.FetchByDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Len(t, fetched, 2)
}

func TestStore_FetchByDocumentOrdered(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entries := makeEntries("a.pdf", 4)
	// Insert out of order.
	require.NoError(t, store.Upsert(ctx, []index.Entry{entries[2], entries[0], entries[3], entries[1]}))
	require.NoError(t, store.Upsert(ctx, makeEntries("b.pdf", 2)))

	fetched, err := store.FetchByDocument(ctx, "a.pdf")
	require.NoError(t, err)
	require.Len(t, fetched, 4)
	for i, e := range fetched {
		assert.Equal(t, i, e.Ordinal)
		assert.Equal(t, core.DocumentID("a.pdf"), e.Document)
	}
}

func TestStore_Search(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []index.Entry{
		{ID: core.ChunkID("a.pdf", 0), Document: "a.pdf", Ordinal: 0, Text: "north", Vector: []float32{1, 0}},
		{ID: core.ChunkID("a.pdf", 1), Document: "a.pdf", Ordinal: 1, Text: "east", Vector: []float32{0, 1}},
		{ID: core.ChunkID("a.pdf", 2), Document: "a.pdf", Ordinal: 2, Text: "northeast", Vector: []float32{0.7, 0.7}},
	}))

	matches, err := store.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "north", matches[0].Entry.Text)
	assert.Equal(t, "northeast", matches[1].Entry.Text)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_Reset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entries := makeEntries("a.pdf", 3)
	require.NoError(t, store.Upsert(ctx, entries))

	require.NoError(t, store.Reset(ctx))

	present, err := store.Exists(ctx, []string{entries[0].ID})
	require.NoError(t, err)
	assert.Empty(t, present)

	fetched, err := store.FetchByDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Empty(t, fetched)
}

func TestEntryMUS_RoundTrip(t *testing.T) {
	entry := index.Entry{
		ID:         core.ChunkID("a.pdf", 7),
		Document:   "a.pdf",
		Ordinal:    7,
		Text:       "some chunk text",
		Vector:     []float32{0.25, -1.5, 3},
		IngestedAt: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
	}

	decoded, err := unmarshalEntry(marshalEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}
