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


package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/qdrant/go-client/qdrant"
)

// Payload field names for index entries.
const (
	payloadDocID      = "doc_id"
	payloadOrdinal    = "ordinal"
	payloadContent    = "content"
	payloadIngestedAt = "ingested_at"
)

// scrollPageSize is how many points one FetchByDocument scroll page
// requests.
const scrollPageSize = 4096

// Config holds connection settings for a Qdrant store.
type Config struct {
	Host       string
	Port       int
	UseTLS     bool
	Collection string
	// Dimensions is the embedding vector size; required to create the
	// collection on first use.
	Dimensions uint64
}

// Store implements the index contract against a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
	dimensions uint64
}

var _ index.Index = (*Store)(nil)

// New connects to Qdrant and ensures the collection exists.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.Collection == "" {
		return nil, errors.New("empty collection name")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}

	s := &Store{
		client:     client,
		collection: config.Collection,
		logger:     slog.Default().With("component", "qdrant-index"),
		dimensions: config.Dimensions,
	}

	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}
	return nil
}

// Exists reports which of the given chunk identities are present.
func (s *Store) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}

	present := make(map[string]bool, len(points))
	for _, point := range points {
		present[point.Id.GetUuid()] = true
	}
	return present, nil
}

// Upsert inserts entries by identity, overwriting any present ones.
func (s *Store) Upsert(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadDocID:      string(e.Document),
				payloadOrdinal:    e.Ordinal,
				payloadContent:    e.Text,
				payloadIngestedAt: e.IngestedAt.Unix(),
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes entries by identity. Absent identities are no-ops on
// the Qdrant side.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}
	return nil
}

// FetchByDocument returns every entry for a document in ordinal order.
// Vectors are not fetched; callers re-embed from the returned text.
func (s *Store) FetchByDocument(ctx context.Context, doc core.DocumentID) ([]index.Entry, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadDocID, string(doc)),
		},
	}

	var entries []index.Entry
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
		}
		for _, point := range points {
			// Pages resumed from an offset include the offset point again.
			if offset != nil && point.Id.GetUuid() == offset.GetUuid() {
				continue
			}
			entries = append(entries, entryFromPayload(point.Id.GetUuid(), point.Payload))
		}
		if len(points) < scrollPageSize {
			break
		}
		offset = points[len(points)-1].Id
	}

	slices.SortFunc(entries, func(a, b index.Entry) int {
		return a.Ordinal - b.Ordinal
	})
	return entries, nil
}

// Search returns the closest entries by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]index.Match, error) {
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}

	matches := make([]index.Match, 0, len(result))
	for _, hit := range result {
		matches = append(matches, index.Match{
			Entry: entryFromPayload(hit.Id.GetUuid(), hit.Payload),
			Score: hit.Score,
		})
	}
	return matches, nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: %v", index.ErrStoreUnavailable, err)
	}
	return s.ensureCollection(ctx)
}

func entryFromPayload(id string, payload map[string]*qdrant.Value) index.Entry {
	return index.Entry{
		ID:         id,
		Document:   core.DocumentID(payload[payloadDocID].GetStringValue()),
		Ordinal:    int(payload[payloadOrdinal].GetIntegerValue()),
		Text:       payload[payloadContent].GetStringValue(),
		IngestedAt: time.Unix(payload[payloadIngestedAt].GetIntegerValue(), 0).UTC(),
	}
}
