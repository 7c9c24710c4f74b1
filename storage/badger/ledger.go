// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/storage"
)

// Ledger implements storage.Ledger for BadgerDB.
type Ledger struct {
	backend *Backend
}

var _ storage.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger on top of an open backend.
func NewLedger(backend *Backend) *Ledger {
	return &Ledger{backend: backend}
}

// Close releases the underlying backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

// Get retrieves the record for a document identity.
func (l *Ledger) Get(ctx context.Context, doc core.DocumentID) (*core.Record, error) {
	var result *core.Record
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecordKey(doc))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalRecord(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// Put upserts the record for a document identity.
func (l *Ledger) Put(ctx context.Context, record *core.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return l.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(record.Document)
		if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// RemoveChunks clears the chunk-identity list of a record.
func (l *Ledger) RemoveChunks(ctx context.Context, doc core.DocumentID) error {
	return l.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(doc)
		item, err := tx.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var record *core.Record
		err = item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalRecord(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}

		record.ChunkIDs = nil
		if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ForEach visits every ledger record.
func (l *Ledger) ForEach(ctx context.Context, fn func(*core.Record) error) error {
	return l.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.Record
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				record, unmarshalErr = storage.UnmarshalRecord(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}

			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// ResetAll removes every ledger record unconditionally.
func (l *Ledger) ResetAll(ctx context.Context) error {
	return l.backend.DropPrefix([]byte(recordPrefix))
}
