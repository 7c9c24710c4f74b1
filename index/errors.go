package index

import "errors"

var (
	// ErrStoreUnavailable indicates the underlying store could not be
	// reached. Transient: callers may retry with backoff.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreCorrupt indicates a corrupt persisted segment. Not
	// retryable; it threatens every document's chunks, so a run must
	// abort rather than continue per-document.
	ErrStoreCorrupt = errors.New("vector store corrupt")
)
