// Package badger implements the storage.Ledger contract on BadgerDB.
// Records are MUS-serialized and keyed by document identity; per-record
// upserts are atomic within a Badger transaction.
package badger
