// Package reconcile drives documents toward a consistent indexed state.
// Each run classifies every discovered document as new, clean, in need
// of repair, or stale, and performs the minimum work to converge: clean
// documents are skipped, missing chunks are re-inserted, changed
// documents are re-ingested from scratch.
//
// Ordering is the load-bearing property: the vector index is always
// mutated before the ledger records the result. A crash between the two
// leaves extra index entries that the next run repairs, never a ledger
// record pointing at work that was not done.
package reconcile
