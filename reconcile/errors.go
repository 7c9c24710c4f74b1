package reconcile

import "errors"

var (
	// ErrLedgerRequired indicates a nil ledger was passed to New.
	ErrLedgerRequired = errors.New("ledger is required")

	// ErrIndexRequired indicates a nil index was passed to New.
	ErrIndexRequired = errors.New("index is required")

	// ErrEmbedderRequired indicates a nil embedder was passed to New.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrExtractorRequired indicates a nil extractor was passed to New.
	ErrExtractorRequired = errors.New("extractor is required")

	// ErrChunkerRequired indicates a nil chunker was passed to New.
	ErrChunkerRequired = errors.New("chunker is required")

	// ErrLedgerWriteFailed indicates the index mutation succeeded but the
	// ledger write did not. The affected document is failed for this run;
	// the next run observes the index entries and repairs the record.
	ErrLedgerWriteFailed = errors.New("ledger write failed")

	// ErrInvalidMaxAttempts indicates a non-positive retry attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
