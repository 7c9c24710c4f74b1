// Package reindex rebuilds every vector in the index from the chunk
// text it already holds, without touching the ledger. Used after an
// embedding model change, when the chunks are still correct but their
// vectors are not.
package reindex
