// Package core defines the domain model for document ingestion:
// document identities, fingerprints, chunks, ledger records, and the
// serializers used to persist them.
package core
