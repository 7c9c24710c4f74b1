package mock

import (
	"context"
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docindex/ai"
)

// Dimensions is the size of vectors produced by the mock embedder.
const Dimensions = 16

// Embedder derives vectors from a hash of the input text. Identical text
// always embeds to the identical vector, which is what reconciliation
// tests need.
type Embedder struct{}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a deterministic mock embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// EmbedText generates a deterministic vector for the text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return hashVector(text), nil
}

// EmbedTexts generates deterministic vectors for each text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text)
	}
	return vectors, nil
}

func hashVector(text string) []float32 {
	h, _ := blake2b.New(Dimensions*4, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)

	v := make([]float32, Dimensions)
	for i := range v {
		bits := binary.LittleEndian.Uint32(sum[i*4:])
		// Map to [-1, 1).
		v[i] = float32(int32(bits)) / (1 << 31)
	}
	return ai.NormalizeVector(v)
}
