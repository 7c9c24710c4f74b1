package index

import (
	"context"
	"time"

	"github.com/poiesic/docindex/core"
)

// Entry is one chunk as stored in the vector index.
type Entry struct {
	ID         string
	Document   core.DocumentID
	Ordinal    int
	Text       string
	Vector     []float32
	IngestedAt time.Time
}

// Match is a search hit with its similarity score.
type Match struct {
	Entry Entry
	Score float32
}

// Index abstracts the vector store. Implementations must be safe for
// concurrent use.
type Index interface {
	// Exists reports which of the given chunk identities are present.
	// Missing identities are simply absent from the result.
	Exists(ctx context.Context, ids []string) (map[string]bool, error)

	// Upsert inserts entries by identity. Inserting an already-present
	// identity overwrites it; it never duplicates.
	Upsert(ctx context.Context, entries []Entry) error

	// Delete removes entries by identity. Deleting an absent identity is
	// a no-op.
	Delete(ctx context.Context, ids []string) error

	// FetchByDocument returns every entry belonging to a document,
	// ordered by ordinal. Implementations backed by remote stores may
	// omit vectors from the result.
	FetchByDocument(ctx context.Context, doc core.DocumentID) ([]Entry, error)

	// Search returns the entries most similar to the query vector,
	// highest score first.
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)

	// Reset removes every entry unconditionally.
	Reset(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}
