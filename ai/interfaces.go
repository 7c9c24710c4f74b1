package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch.
	// The returned slice matches the order of the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FieldExtractor pulls a fixed-arity row of structured fields out of
// document text. Implementations must be safe for concurrent use.
type FieldExtractor interface {
	// ExtractFields returns the structured fields and the raw model
	// response. The raw response is returned even when parsing fails, so
	// callers can archive it for manual review.
	ExtractFields(ctx context.Context, text string) (fields []string, raw string, err error)
}

// Provider aggregates the model-backed services for convenient
// initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// FieldExtractor returns the structured extraction service.
	FieldExtractor() FieldExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
