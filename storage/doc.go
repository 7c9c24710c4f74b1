// Package storage defines the metadata ledger contract: the durable
// mapping from document identity to its ingestion record. Implementations
// live in subpackages (storage/badger).
package storage
