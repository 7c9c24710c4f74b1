package storage

import (
	"context"

	"github.com/poiesic/docindex/core"
)

// Ledger is the durable record of what has been ingested. It is owned
// exclusively by the reconciler and mutated only after the corresponding
// index mutation has succeeded; a crash between an index write and a
// ledger write is recovered by simply re-running the reconciler.
// Implementations must be safe for concurrent use and survive process
// restarts.
type Ledger interface {
	// Get retrieves the record for a document identity.
	// Returns ErrNotFound if the document has never been recorded.
	Get(ctx context.Context, doc core.DocumentID) (*core.Record, error)

	// Put upserts the record for a document identity atomically.
	Put(ctx context.Context, record *core.Record) error

	// RemoveChunks clears the chunk-identity list of a record, leaving the
	// fingerprints and timestamp in place.
	// Returns ErrNotFound if the document has never been recorded.
	RemoveChunks(ctx context.Context, doc core.DocumentID) error

	// ForEach visits every record. Iteration stops at the first error
	// returned by fn, which is propagated to the caller.
	ForEach(ctx context.Context, fn func(*core.Record) error) error

	// ResetAll removes every record unconditionally.
	ResetAll(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}
