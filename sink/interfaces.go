package sink

import (
	"context"
	"time"

	"github.com/poiesic/docindex/core"
)

// RowSink receives one structured row per processed document.
type RowSink interface {
	// Init prepares the sink, creating the header row if absent.
	Init(ctx context.Context) error

	// AppendRow appends one row. The sink pads or truncates the row to
	// its configured width.
	AppendRow(ctx context.Context, row []string) error
}

// Archive stores raw model responses so a parse failure never loses the
// model's output.
type Archive interface {
	// Save writes the raw response for a document and returns the path
	// (or other locator) it was stored under.
	Save(ctx context.Context, doc core.DocumentID, ts time.Time, raw string) (string, error)
}
