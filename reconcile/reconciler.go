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


package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/chunk"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/extract"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/sink"
	"github.com/poiesic/docindex/storage"
)

// embedBatchSize bounds one embedding request.
const embedBatchSize = 100

// Reconciler converges documents, the vector index, and the ledger.
type Reconciler struct {
	ledger    storage.Ledger
	index     index.Index
	embedder  ai.Embedder
	chunker   *chunk.Chunker
	extractor extract.Extractor

	// Downstream collaborators, all optional.
	fields  ai.FieldExtractor
	rows    sink.RowSink
	archive sink.Archive

	pool        *ants.Pool
	locks       docLocks
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler) error

// WithPoolSize sets the worker pool size for concurrent reconciliation.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Reconciler) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reconciler")
		return nil
	}
}

// WithRetry sets how transient index failures are retried.
// Default is 3 attempts with a 500ms base delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(r *Reconciler) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		r.maxAttempts = maxAttempts
		r.retryDelay = baseDelay
		return nil
	}
}

// WithFieldExtractor enables structured extraction for newly ingested
// and re-ingested documents.
func WithFieldExtractor(fields ai.FieldExtractor) Option {
	return func(r *Reconciler) error {
		r.fields = fields
		return nil
	}
}

// WithRowSink sends extracted rows to a sink. Only used when a field
// extractor is also configured.
func WithRowSink(rows sink.RowSink) Option {
	return func(r *Reconciler) error {
		r.rows = rows
		return nil
	}
}

// WithArchive stores raw extraction responses. Only used when a field
// extractor is also configured.
func WithArchive(archive sink.Archive) Option {
	return func(r *Reconciler) error {
		r.archive = archive
		return nil
	}
}

// New creates a Reconciler.
func New(
	ledger storage.Ledger,
	idx index.Index,
	embedder ai.Embedder,
	chunker *chunk.Chunker,
	extractor extract.Extractor,
	opts ...Option,
) (*Reconciler, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		ledger:      ledger,
		index:       idx,
		embedder:    embedder,
		chunker:     chunker,
		extractor:   extractor,
		pool:        pool,
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
		logger:      slog.Default().With("component", "reconciler"),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	return r, nil
}

// Release releases the worker pool. The reconciler should not be used
// after calling Release.
func (r *Reconciler) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Run reconciles every document and returns a per-run report. Document
// failures are recorded in the report and do not stop the run; a corrupt
// index store aborts it and is returned as the error.
func (r *Reconciler) Run(ctx context.Context, docs []core.Document) (*Report, error) {
	report := NewReport()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalOnce sync.Once
	var fatalErr error

	var wg sync.WaitGroup
	for _, doc := range docs {
		doc := doc
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()

			if runCtx.Err() != nil {
				return
			}

			unlock := r.locks.lock(doc.ID)
			defer unlock()

			state, err := r.reconcileOne(runCtx, doc)
			if err == nil {
				report.recordState(state)
				return
			}

			if errors.Is(err, index.ErrStoreCorrupt) {
				fatalOnce.Do(func() {
					fatalErr = fmt.Errorf("reconciling %s: %w", doc.ID, err)
					cancel()
				})
				return
			}
			if errors.Is(err, context.Canceled) && runCtx.Err() != nil && ctx.Err() == nil {
				// Aborted by a fatal error elsewhere; not this document's fault.
				return
			}

			r.logger.Error("document failed", "doc", doc.ID, "err", err)
			report.recordFailure(doc.ID, err)
		})
		if err != nil {
			wg.Done()
			report.recordFailure(doc.ID, err)
		}
	}
	wg.Wait()

	if fatalErr != nil {
		return report, fatalErr
	}
	r.logger.Info("run complete", "report", report.String())
	return report, nil
}

// reconcileOne classifies a document and performs the minimum work to
// converge it.
func (r *Reconciler) reconcileOne(ctx context.Context, doc core.Document) (State, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return StateNew, fmt.Errorf("reading %s: %w", doc.Path, err)
	}
	fileDigest := core.FileFingerprint(data)

	record, err := r.ledger.Get(ctx, doc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Info("new document", "doc", doc.ID)
		return StateNew, r.ingest(ctx, doc, fileDigest, nil)
	}
	if err != nil {
		return StateNew, fmt.Errorf("reading ledger for %s: %w", doc.ID, err)
	}

	if record.FileDigest != fileDigest {
		r.logger.Info("stale document", "doc", doc.ID)
		return StateStale, r.ingest(ctx, doc, fileDigest, record)
	}

	// A record with no chunks is a re-ingestion that was interrupted after
	// the old generation was removed but before the new one landed. An
	// intact document always has at least one chunk, so force a re-ingest
	// rather than skipping it as converged.
	if len(record.ChunkIDs) == 0 {
		r.logger.Warn("record has no chunks, re-ingesting", "doc", doc.ID)
		return StateStale, r.ingest(ctx, doc, fileDigest, record)
	}

	present, err := r.indexExists(ctx, record.ChunkIDs)
	if err != nil {
		return StateClean, err
	}

	missing := make(map[string]bool)
	for _, id := range record.ChunkIDs {
		if !present[id] {
			missing[id] = true
		}
	}
	if len(missing) == 0 {
		r.logger.Debug("clean document", "doc", doc.ID)
		return StateClean, nil
	}

	r.logger.Info("repairing document", "doc", doc.ID,
		"missing", len(missing), "total", len(record.ChunkIDs))
	return r.repair(ctx, doc, record, missing)
}

// repair re-derives the document's chunks and re-inserts exactly the
// missing ones. If the re-derived text no longer matches the recorded
// content fingerprint the repair escalates to a full re-ingestion:
// silent drift must not be patched over.
func (r *Reconciler) repair(ctx context.Context, doc core.Document, record *core.Record, missing map[string]bool) (State, error) {
	result, err := r.extractor.Extract(ctx, doc.Path)
	if err != nil {
		return StateRepair, err
	}

	if core.ContentFingerprint(result.Text) != record.ContentDigest {
		r.logger.Warn("content drift during repair, re-ingesting", "doc", doc.ID)
		return StateStale, r.reingest(ctx, doc, record, result)
	}

	chunks, err := r.chunker.Split(doc.ID, result.Text)
	if err != nil {
		return StateRepair, err
	}
	if len(chunks) != len(record.ChunkIDs) {
		r.logger.Warn("chunk count drift during repair, re-ingesting",
			"doc", doc.ID, "derived", len(chunks), "recorded", len(record.ChunkIDs))
		return StateStale, r.reingest(ctx, doc, record, result)
	}

	var toInsert []core.Chunk
	for _, c := range chunks {
		if missing[c.ID] {
			toInsert = append(toInsert, c)
		}
	}

	if err := r.embedAndUpsert(ctx, toInsert); err != nil {
		return StateRepair, err
	}

	record.ProcessedAt = time.Now().UTC()
	if err := r.ledger.Put(ctx, record); err != nil {
		return StateRepair, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}
	return StateRepair, nil
}

// ingest extracts, chunks, embeds and indexes a document, then records
// it in the ledger. A non-nil prior marks a stale re-ingestion: the
// prior chunks are deleted from the index first.
func (r *Reconciler) ingest(ctx context.Context, doc core.Document, fileDigest core.Digest, prior *core.Record) error {
	result, err := r.extractor.Extract(ctx, doc.Path)
	if err != nil {
		return err
	}

	if prior != nil {
		if err := r.indexDelete(ctx, prior.ChunkIDs); err != nil {
			return err
		}
		// Record the deletion before inserting the new generation, so a
		// crash mid-ingest cannot leave the ledger claiming chunks that
		// were already removed.
		if err := r.ledger.RemoveChunks(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
		}
	}

	chunks, err := r.chunker.Split(doc.ID, result.Text)
	if err != nil {
		return err
	}

	if err := r.embedAndUpsert(ctx, chunks); err != nil {
		return err
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	record := &core.Record{
		Document:      doc.ID,
		FileDigest:    fileDigest,
		ContentDigest: core.ContentFingerprint(result.Text),
		ChunkIDs:      chunkIDs,
		ProcessedAt:   time.Now().UTC(),
	}
	if err := r.ledger.Put(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}

	r.downstream(ctx, doc, result.Text)
	return nil
}

// reingest is the escalation path out of repair, where the file bytes
// still match but the derived text does not.
func (r *Reconciler) reingest(ctx context.Context, doc core.Document, prior *core.Record, result extract.Result) error {
	if err := r.indexDelete(ctx, prior.ChunkIDs); err != nil {
		return err
	}
	if err := r.ledger.RemoveChunks(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}

	chunks, err := r.chunker.Split(doc.ID, result.Text)
	if err != nil {
		return err
	}
	if err := r.embedAndUpsert(ctx, chunks); err != nil {
		return err
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	record := &core.Record{
		Document:      doc.ID,
		FileDigest:    prior.FileDigest,
		ContentDigest: core.ContentFingerprint(result.Text),
		ChunkIDs:      chunkIDs,
		ProcessedAt:   time.Now().UTC(),
	}
	if err := r.ledger.Put(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}

	r.downstream(ctx, doc, result.Text)
	return nil
}

// embedAndUpsert embeds chunks in batches and inserts them. Insertion
// happens per batch, so a failure partway leaves earlier batches in the
// index; the next run repairs the remainder.
func (r *Reconciler) embedAndUpsert(ctx context.Context, chunks []core.Chunk) error {
	now := time.Now().UTC()
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: got %d vectors for %d texts",
				ai.ErrEmbeddingUnavailable, len(vectors), len(batch))
		}

		entries := make([]index.Entry, len(batch))
		for i, c := range batch {
			entries[i] = index.Entry{
				ID:         c.ID,
				Document:   c.Document,
				Ordinal:    c.Ordinal,
				Text:       c.Text,
				Vector:     vectors[i],
				IngestedAt: now,
			}
		}

		err = RetryWithBackoff(ctx, func() error {
			return r.index.Upsert(ctx, entries)
		}, r.maxAttempts, r.retryDelay, isTransient)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) indexExists(ctx context.Context, ids []string) (map[string]bool, error) {
	var present map[string]bool
	err := RetryWithBackoff(ctx, func() error {
		var opErr error
		present, opErr = r.index.Exists(ctx, ids)
		return opErr
	}, r.maxAttempts, r.retryDelay, isTransient)
	return present, err
}

func (r *Reconciler) indexDelete(ctx context.Context, ids []string) error {
	return RetryWithBackoff(ctx, func() error {
		return r.index.Delete(ctx, ids)
	}, r.maxAttempts, r.retryDelay, isTransient)
}

func isTransient(err error) bool {
	return errors.Is(err, index.ErrStoreUnavailable)
}

// downstream runs structured extraction and delivery for a document that
// was just ingested or re-ingested. Everything here is best-effort: the
// document is already indexed and recorded, and a sheet or archive
// failure must not undo that.
func (r *Reconciler) downstream(ctx context.Context, doc core.Document, text string) {
	if r.fields == nil {
		return
	}

	fields, raw, err := r.fields.ExtractFields(ctx, text)

	if r.archive != nil && raw != "" {
		if path, saveErr := r.archive.Save(ctx, doc.ID, time.Now().UTC(), raw); saveErr != nil {
			r.logger.Error("failed to archive extraction output", "doc", doc.ID, "err", saveErr)
		} else {
			r.logger.Debug("archived extraction output", "doc", doc.ID, "path", path)
		}
	}

	if err != nil {
		r.logger.Error("structured extraction failed", "doc", doc.ID, "err", err)
		return
	}

	if r.rows != nil {
		if err := r.rows.AppendRow(ctx, fields); err != nil {
			r.logger.Error("failed to append extracted row", "doc", doc.ID, "err", err)
		}
	}
}

// Reset clears the index and the ledger. Both phases are attempted even
// if the first fails; errors are joined.
func (r *Reconciler) Reset(ctx context.Context) error {
	var errs []error

	if err := r.index.Reset(ctx); err != nil {
		r.logger.Error("index reset failed", "err", err)
		errs = append(errs, fmt.Errorf("resetting index: %w", err))
	} else {
		r.logger.Info("index reset")
	}

	if err := r.ledger.ResetAll(ctx); err != nil {
		r.logger.Error("ledger reset failed", "err", err)
		errs = append(errs, fmt.Errorf("resetting ledger: %w", err))
	} else {
		r.logger.Info("ledger reset")
	}

	return errors.Join(errs...)
}
