// Package index defines the vector index adapter contract. The index is
// the ground truth for what is actually searchable; it can diverge from
// the ledger's belief and the reconciler repairs the difference. All
// operations are idempotent and batch-capable, and absence of an identity
// is a normal result, never an error.
package index
