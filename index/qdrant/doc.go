// Package qdrant implements the index contract against a remote Qdrant
// collection over gRPC. Chunk identities map directly to point IDs, so
// existence checks and deletes are cheap point lookups; the collection
// is created with cosine distance on first use.
package qdrant
