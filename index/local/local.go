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


package local

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/storage/badger"
)

// Key prefixes. Entries are keyed by chunk identity; a secondary key per
// (document, ordinal) keeps a document's entries enumerable in order.
const (
	entryPrefix    = "vecent"
	docIndexPrefix = "vecdoc"
)

// Store is an embedded vector index on BadgerDB.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

// Backend aliases the shared badger backend so callers can hand the
// ledger and the index the same database or separate ones.
type Backend = badger.Backend

var _ index.Index = (*Store)(nil)

// New creates a Store on top of an open backend.
func New(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "local-index"),
	}
}

// Open opens (or creates) an embedded index at the given path. A failure
// to open an existing database is reported as a corrupt store, which
// callers must treat as fatal to the whole run.
func Open(path string) (*Store, error) {
	backend, err := badger.OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrStoreCorrupt, err)
	}
	return New(backend), nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.backend.Close()
}

func makeEntryKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", entryPrefix, id))
}

// makeDocKey generates a composite key for the document index.
// Format: prefix:docID\x00ordinal, with a fixed-width ordinal so
// lexicographic iteration yields ordinal order.
func makeDocKey(doc core.DocumentID, ordinal int) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00%012d", docIndexPrefix, doc, ordinal))
}

func makeDocPrefix(doc core.DocumentID) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00", docIndexPrefix, doc))
}

// Exists reports which of the given chunk identities are present.
func (s *Store) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	present := make(map[string]bool, len(ids))
	err := s.backend.WithTx(func(tx *badgerdb.Txn) error {
		for _, id := range ids {
			_, err := tx.Get(makeEntryKey(id))
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			present[id] = true
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return present, nil
}

// Upsert inserts entries by identity, overwriting any present ones.
func (s *Store) Upsert(ctx context.Context, entries []index.Entry) error {
	return s.backend.WithTx(func(tx *badgerdb.Txn) error {
		for _, e := range entries {
			if err := tx.Set(makeEntryKey(e.ID), marshalEntry(e)); err != nil {
				return err
			}
			if err := tx.Set(makeDocKey(e.Document, e.Ordinal), []byte(e.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Delete removes entries by identity. Absent identities are skipped.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	return s.backend.WithTx(func(tx *badgerdb.Txn) error {
		for _, id := range ids {
			key := makeEntryKey(id)
			item, err := tx.Get(key)
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}

			var entry index.Entry
			err = item.Value(func(val []byte) error {
				var umErr error
				entry, umErr = unmarshalEntry(val)
				return umErr
			})
			if err != nil {
				return err
			}

			if err := tx.Delete(makeDocKey(entry.Document, entry.Ordinal)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FetchByDocument returns every entry for a document in ordinal order.
func (s *Store) FetchByDocument(ctx context.Context, doc core.DocumentID) ([]index.Entry, error) {
	var entries []index.Entry
	err := s.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = makeDocPrefix(doc)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id string
			err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			item, err := tx.Get(makeEntryKey(id))
			if err == badgerdb.ErrKeyNotFound {
				// Dangling document-index key; the entry itself is gone.
				continue
			}
			if err != nil {
				return err
			}

			var entry index.Entry
			err = item.Value(func(val []byte) error {
				var umErr error
				entry, umErr = unmarshalEntry(val)
				return umErr
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Search scans every entry and returns the most similar, highest score
// first. Vectors are expected to be normalized, so the dot product is the
// cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]index.Match, error) {
	var matches []index.Match
	err := s.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry index.Entry
			err := iter.Item().Value(func(val []byte) error {
				var umErr error
				entry, umErr = unmarshalEntry(val)
				return umErr
			})
			if err != nil {
				return err
			}
			if len(entry.Vector) == 0 {
				continue
			}

			matches = append(matches, index.Match{
				Entry: entry,
				Score: dotProduct(vector, entry.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b index.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Reset removes every entry unconditionally.
func (s *Store) Reset(ctx context.Context) error {
	return s.backend.DropPrefix([]byte(entryPrefix), []byte(docIndexPrefix))
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
