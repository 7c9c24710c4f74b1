// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/reconcile"
	"github.com/poiesic/docindex/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of chunks to embed per request.
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks).
	ReportInterval int

	// MaxRetries is the maximum number of attempts for index writes.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every chunk recorded in the ledger.
type Reindexer struct {
	ledger   storage.Ledger
	index    index.Index
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a reindexer.
// progress: where to write progress output (typically os.Stderr).
func NewReindexer(ledger storage.Ledger, idx index.Index, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reindexer{
		ledger:   ledger,
		index:    idx,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run re-embeds every chunk of every recorded document. The ledger is
// read-only here: chunk identities don't change, only their vectors.
func (r *Reindexer) Run(ctx context.Context) error {
	totalChunks := 0
	err := r.ledger.ForEach(ctx, func(record *core.Record) error {
		totalChunks += len(record.ChunkIDs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}

	if totalChunks == 0 {
		fmt.Fprintf(r.progress, "No chunks recorded (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks (batch size: %d)\n",
		totalChunks, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, totalChunks, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.ledger.ForEach(ctx, func(record *core.Record) error {
		n, docErr := r.reindexDocument(ctx, record.Document)
		if docErr != nil {
			return fmt.Errorf("reindexing %s: %w", record.Document, docErr)
		}
		processed += n
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())
	return nil
}

func (r *Reindexer) reindexDocument(ctx context.Context, doc core.DocumentID) (int, error) {
	entries, err := r.index.FetchByDocument(ctx, doc)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(entries); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.Text
		}

		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, err
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("%w: got %d vectors for %d texts",
				ai.ErrEmbeddingUnavailable, len(vectors), len(batch))
		}

		for i := range batch {
			batch[i].Vector = ai.NormalizeVector(vectors[i])
		}

		err = reconcile.RetryWithBackoff(ctx, func() error {
			return r.index.Upsert(ctx, batch)
		}, r.config.MaxRetries, r.config.RetryDelay, func(err error) bool {
			return errors.Is(err, index.ErrStoreUnavailable)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}
