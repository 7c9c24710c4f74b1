package core

import (
	"time"
)

// DocumentID is the stable key distinguishing one source document from
// another across runs. It is supplied by the caller (typically the file's
// base name) rather than derived from the full path, so a relocated corpus
// directory does not change document identities.
type DocumentID string

// Document is one source file eligible for ingestion.
type Document struct {
	ID   DocumentID
	Path string
}

// Chunk is a contiguous segment of a document's extracted text.
// Its ID is a deterministic function of (document identity, ordinal), so
// re-chunking identical text reproduces identical IDs.
type Chunk struct {
	ID       string
	Document DocumentID
	Ordinal  int
	Text     string
}

// Record is the ledger's belief about one ingested document: what bytes it
// had, what text it produced, and which chunk identities were written to
// the index. It is mutated only after the corresponding index mutation has
// succeeded.
type Record struct {
	Document      DocumentID
	FileDigest    Digest
	ContentDigest Digest
	ChunkIDs      []string
	ProcessedAt   time.Time
}
