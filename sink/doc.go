// Package sink defines where extracted results go after indexing: a row
// sink receiving one structured row per document, and an archive keeping
// the raw model responses for manual review. Both are best-effort
// consumers; their failures never undo an ingestion.
package sink
