package mock

import (
	"context"
	"fmt"

	"github.com/poiesic/docindex/ai"
)

// FieldExtractor fabricates a stable row from the input text. The first
// field carries a text prefix so tests can assert which document the row
// came from.
type FieldExtractor struct {
	// FieldCount is the row arity. Default ai.DefaultFieldCount.
	FieldCount int

	// Err, when set, is returned by every call.
	Err error
}

var _ ai.FieldExtractor = (*FieldExtractor)(nil)

// NewFieldExtractor creates a mock extractor with the default arity.
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{FieldCount: ai.DefaultFieldCount}
}

// ExtractFields returns a deterministic row derived from the text.
func (e *FieldExtractor) ExtractFields(ctx context.Context, text string) ([]string, string, error) {
	count := e.FieldCount
	if count < 1 {
		count = ai.DefaultFieldCount
	}

	prefix := text
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	raw := fmt.Sprintf("mock extraction of %q", prefix)

	if e.Err != nil {
		return nil, raw, e.Err
	}

	fields := make([]string, count)
	fields[0] = prefix
	for i := 1; i < count; i++ {
		fields[i] = fmt.Sprintf("field-%d", i)
	}
	return fields, raw, nil
}
