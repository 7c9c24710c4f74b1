package ai

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding service could not
	// produce vectors. The affected document is failed; the run continues.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrMalformedResponse indicates the extraction model returned output
	// that could not be parsed into a field row after retries.
	ErrMalformedResponse = errors.New("malformed model response")
)
