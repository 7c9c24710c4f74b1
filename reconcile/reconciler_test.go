package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docindex/ai/mock"
	"github.com/poiesic/docindex/chunk"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/extract"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/index/local"
	"github.com/poiesic/docindex/sink"
	"github.com/poiesic/docindex/storage"
	"github.com/poiesic/docindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyIndex counts mutations so tests can assert that converged runs
// perform none.
type spyIndex struct {
	index.Index
	upsertedEntries atomic.Int64
	deletedIDs      atomic.Int64
}

func (s *spyIndex) Upsert(ctx context.Context, entries []index.Entry) error {
	s.upsertedEntries.Add(int64(len(entries)))
	return s.Index.Upsert(ctx, entries)
}

func (s *spyIndex) Delete(ctx context.Context, ids []string) error {
	s.deletedIDs.Add(int64(len(ids)))
	return s.Index.Delete(ctx, ids)
}

// flakyLedger fails Put on demand to simulate a crash between the index
// mutation and the ledger write.
type flakyLedger struct {
	storage.Ledger
	failPuts atomic.Bool
}

func (l *flakyLedger) Put(ctx context.Context, record *core.Record) error {
	if l.failPuts.Load() {
		return errors.New("simulated ledger outage")
	}
	return l.Ledger.Put(ctx, record)
}

// recordingSink collects appended rows.
type recordingSink struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (s *recordingSink) Init(ctx context.Context) error { return s.err }

func (s *recordingSink) AppendRow(ctx context.Context, row []string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fixture struct {
	ledger  storage.Ledger
	index   *spyIndex
	store   *local.Store
	sink    *recordingSink
	rec     *Reconciler
	corpus  string
	archive string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ledger, err := badger.NewMemoryLedger()
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	store := local.New(backend)
	t.Cleanup(func() { store.Close() })
	spy := &spyIndex{Index: store}

	chunker, err := chunk.NewChunker(chunk.WithChunkSize(200), chunk.WithChunkOverlap(20))
	require.NoError(t, err)

	f := &fixture{
		ledger:  ledger,
		index:   spy,
		store:   store,
		sink:    &recordingSink{},
		corpus:  t.TempDir(),
		archive: t.TempDir(),
	}

	base := []Option{
		WithPoolSize(2),
		WithRetry(1, time.Millisecond),
		WithFieldExtractor(mock.NewFieldExtractor()),
		WithRowSink(f.sink),
		WithArchive(sink.NewFileArchive(f.archive)),
	}
	rec, err := New(ledger, spy, mock.NewEmbedder(), chunker, extract.NewFileExtractor(),
		append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(rec.Release)

	f.rec = rec
	return f
}

func (f *fixture) writeDoc(t *testing.T, name, text string) core.Document {
	t.Helper()
	path := filepath.Join(f.corpus, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return core.Document{ID: core.DocumentID(name), Path: path}
}

func longText(sentence string) string {
	return strings.Repeat(sentence+" ", 40)
}

func TestRun_NewDocumentIngested(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, "a.txt", longText("The quick brown fox jumps over the lazy dog."))

	report, err := f.rec.Run(context.Background(), []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Ingested())
	assert.EqualValues(t, 0, report.Failed())

	record, err := f.ledger.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ChunkIDs)
	assert.False(t, record.ProcessedAt.IsZero())

	entries, err := f.store.FetchByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(record.ChunkIDs))

	// Downstream ran for a new document: a row and an archived response.
	assert.Equal(t, 1, f.sink.count())
	archived, err := os.ReadDir(f.archive)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	docs := []core.Document{
		f.writeDoc(t, "a.txt", longText("Alpha document body text for chunking purposes.")),
		f.writeDoc(t, "b.txt", longText("Beta document body text for chunking purposes.")),
	}

	_, err := f.rec.Run(context.Background(), docs)
	require.NoError(t, err)

	f.index.upsertedEntries.Store(0)
	f.index.deletedIDs.Store(0)
	sinkBefore := f.sink.count()

	report, err := f.rec.Run(context.Background(), docs)
	require.NoError(t, err)

	assert.EqualValues(t, 2, report.Skipped())
	assert.EqualValues(t, 0, report.Ingested())
	assert.EqualValues(t, 0, report.Repaired())
	assert.EqualValues(t, 0, report.Reingested())

	// A converged corpus causes zero index mutations and no new rows.
	assert.EqualValues(t, 0, f.index.upsertedEntries.Load())
	assert.EqualValues(t, 0, f.index.deletedIDs.Load())
	assert.Equal(t, sinkBefore, f.sink.count())
}

func TestRun_RepairReinsertsExactlyMissing(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, "a.txt", longText("Gamma document body text for chunking purposes."))
	ctx := context.Background()

	_, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	record, err := f.ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Greater(t, len(record.ChunkIDs), 2)

	// Knock out two chunks behind the ledger's back.
	lost := record.ChunkIDs[:2]
	require.NoError(t, f.store.Delete(ctx, lost))

	f.index.upsertedEntries.Store(0)
	sinkBefore := f.sink.count()

	report, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Repaired())

	// Exactly the missing chunks were re-inserted.
	assert.EqualValues(t, len(lost), f.index.upsertedEntries.Load())

	present, err := f.store.Exists(ctx, record.ChunkIDs)
	require.NoError(t, err)
	assert.Len(t, present, len(record.ChunkIDs))

	// Repair does not re-run downstream extraction.
	assert.Equal(t, sinkBefore, f.sink.count())
}

func TestRun_StaleDocumentReingested(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, "a.txt", longText("Original content before the edit."))
	ctx := context.Background()

	_, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	before, err := f.ledger.Get(ctx, doc.ID)
	require.NoError(t, err)

	doc = f.writeDoc(t, "a.txt", longText("Entirely different content after the edit."))

	report, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Reingested())

	after, err := f.ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.FileDigest, after.FileDigest)
	assert.NotEqual(t, before.ContentDigest, after.ContentDigest)

	// Old generation is gone; only the new chunks remain.
	entries, err := f.store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(after.ChunkIDs))

	// Downstream ran for both generations.
	assert.Equal(t, 2, f.sink.count())
}

func TestRun_EmptyChunkListReingested(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, "a.txt", longText("Content whose re-ingestion gets interrupted."))
	ctx := context.Background()

	_, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	record, err := f.ledger.Get(ctx, doc.ID)
	require.NoError(t, err)

	// Simulate a crash between removing the old generation and writing
	// the new one: the index entries and the recorded chunk list are
	// gone, but the record itself (with a matching file digest) remains.
	require.NoError(t, f.store.Delete(ctx, record.ChunkIDs))
	require.NoError(t, f.ledger.RemoveChunks(ctx, doc.ID))

	report, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Reingested())
	assert.EqualValues(t, 0, report.Skipped())

	after, err := f.ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, after.ChunkIDs)

	entries, err := f.store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(after.ChunkIDs))
}

// switchExtractor returns a canned text, letting tests change what a
// document derives to without touching its bytes.
type switchExtractor struct {
	mu   sync.Mutex
	text string
}

func (e *switchExtractor) set(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *switchExtractor) Extract(ctx context.Context, path string) (extract.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return extract.Result{Text: e.text}, nil
}

func newStubbedReconciler(t *testing.T, ext extract.Extractor) (storage.Ledger, *local.Store, *Reconciler) {
	t.Helper()

	ledger, err := badger.NewMemoryLedger()
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	store := local.New(backend)
	t.Cleanup(func() { store.Close() })

	chunker, err := chunk.NewChunker(chunk.WithChunkSize(200), chunk.WithChunkOverlap(20))
	require.NoError(t, err)

	rec, err := New(ledger, store, mock.NewEmbedder(), chunker, ext,
		WithPoolSize(1), WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return ledger, store, rec
}

func TestRun_RepairContentDriftEscalates(t *testing.T) {
	ext := &switchExtractor{text: longText("First derivation of the document text.")}
	ledger, store, rec := newStubbedReconciler(t, ext)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("unchanging bytes"), 0o644))
	doc := core.Document{ID: "a.txt", Path: path}

	_, err := rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	before, err := ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Greater(t, len(before.ChunkIDs), 1)

	// Force a repair, then make the re-derived text disagree with the
	// recorded content fingerprint.
	require.NoError(t, store.Delete(ctx, before.ChunkIDs[:1]))
	ext.set(longText("Second derivation, silently different."))

	report, err := rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Reingested())
	assert.EqualValues(t, 0, report.Repaired())

	after, err := ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.ContentDigest, after.ContentDigest)
	// The file bytes never changed, so the file digest carries over.
	assert.Equal(t, before.FileDigest, after.FileDigest)

	entries, err := store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(after.ChunkIDs))
}

func TestRun_RepairChunkCountDriftEscalates(t *testing.T) {
	base := longText("Delta document body text for chunking purposes.")
	ext := &switchExtractor{text: base}
	ledger, store, rec := newStubbedReconciler(t, ext)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("unchanging bytes"), 0o644))
	doc := core.Document{ID: "a.txt", Path: path}

	_, err := rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	before, err := ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Greater(t, len(before.ChunkIDs), 1)

	// Widen the whitespace: the normalized content fingerprint is
	// unchanged, but the raw text chunks into a different number of
	// pieces.
	require.NoError(t, store.Delete(ctx, before.ChunkIDs[:1]))
	ext.set(strings.ReplaceAll(base, " ", "     "))

	report, err := rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Reingested())
	assert.EqualValues(t, 0, report.Repaired())

	after, err := ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ContentDigest, after.ContentDigest)
	assert.NotEqual(t, len(before.ChunkIDs), len(after.ChunkIDs))

	entries, err := store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(after.ChunkIDs))
}

func TestRun_LedgerOutageFailsDocumentButKeepsRun(t *testing.T) {
	ledger, err := badger.NewMemoryLedger()
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	flaky := &flakyLedger{Ledger: ledger}

	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	store := local.New(backend)
	t.Cleanup(func() { store.Close() })

	chunker, err := chunk.NewChunker()
	require.NoError(t, err)

	rec, err := New(flaky, store, mock.NewEmbedder(), chunker, extract.NewFileExtractor(),
		WithPoolSize(1), WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(rec.Release)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte(longText("Some content worth indexing.")), 0o644))
	doc := core.Document{ID: "a.txt", Path: path}
	ctx := context.Background()

	flaky.failPuts.Store(true)
	report, err := rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Failed())
	assert.ErrorIs(t, report.Failures()[0].Err, ErrLedgerWriteFailed)

	// The index write landed before the ledger failed.
	entries, err := store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	// The ledger never recorded it, so the next run treats it as new and
	// converges without duplicating anything.
	flaky.failPuts.Store(false)
	report, err = rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Ingested())

	record, err := ledger.Get(ctx, doc.ID)
	require.NoError(t, err)
	after, err := store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(record.ChunkIDs))
}

func TestRun_SinkFailureDoesNotFailDocument(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("sheet quota exceeded")
	doc := f.writeDoc(t, "a.txt", longText("Content that indexes fine regardless of the sheet."))
	ctx := context.Background()

	report, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Ingested())
	assert.EqualValues(t, 0, report.Failed())

	_, err = f.ledger.Get(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestRun_UnreadableDocumentFails(t *testing.T) {
	f := newFixture(t)
	doc := core.Document{ID: "ghost.txt", Path: filepath.Join(f.corpus, "ghost.txt")}

	report, err := f.rec.Run(context.Background(), []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Failed())
	assert.Equal(t, core.DocumentID("ghost.txt"), report.Failures()[0].Document)
}

func TestReset_ClearsIndexAndLedger(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, "a.txt", longText("Content to be wiped by the reset."))
	ctx := context.Background()

	_, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)

	require.NoError(t, f.rec.Reset(ctx))

	_, err = f.ledger.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entries, err := f.store.FetchByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// After a reset everything is ingested fresh.
	report, err := f.rec.Run(ctx, []core.Document{doc})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Ingested())
}

func TestDiscoverDocuments(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.csv"), []byte("x"), 0o644))

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.docx"), []byte("x"), 0o644))
	// Duplicate base name in a subdirectory is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.txt"), []byte("y"), 0o644))

	hidden := filepath.Join(root, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "d.txt"), []byte("x"), 0o644))

	docs, err := DiscoverDocuments(root)
	require.NoError(t, err)

	ids := make([]core.DocumentID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.ElementsMatch(t, []core.DocumentID{"a.txt", "b.pdf", "c.docx"}, ids)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 3 {
			return index.ErrStoreUnavailable
		}
		return nil
	}, 5, time.Millisecond, isTransient)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// Non-transient errors are not retried.
	calls = 0
	permanent := errors.New("permanent")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return permanent
	}, 5, time.Millisecond, isTransient)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t,
		RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond, nil),
		ErrInvalidMaxAttempts)
}
