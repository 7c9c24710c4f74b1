// Package chunk splits extracted document text into overlapping pieces
// sized for embedding, and assigns each piece its deterministic chunk
// identity. Splitting is pure: the same text always yields the same
// chunks with the same identities.
package chunk
