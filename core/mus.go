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


package core

import (
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the persisted types. Timestamps are
// stored as Unix microseconds.

// DigestMUS serializes a Digest as its 32 raw bytes.
var DigestMUS = digestMUS{}

type digestMUS struct{}

var _ mus.Serializer[Digest] = DigestMUS

func (digestMUS) Marshal(d Digest, bs []byte) int {
	return copy(bs, d[:])
}

func (digestMUS) Unmarshal(bs []byte) (Digest, int, error) {
	var d Digest
	if len(bs) < DigestSize {
		return d, 0, ErrTruncatedData
	}
	copy(d[:], bs)
	return d, DigestSize, nil
}

func (digestMUS) Size(Digest) int {
	return DigestSize
}

func (digestMUS) Skip(bs []byte) (int, error) {
	if len(bs) < DigestSize {
		return 0, ErrTruncatedData
	}
	return DigestSize, nil
}

// RecordMUS serializes a ledger Record.
var RecordMUS = recordMUS{}

type recordMUS struct{}

var _ mus.Serializer[Record] = RecordMUS

func (recordMUS) Marshal(r Record, bs []byte) (n int) {
	n = marshalString(string(r.Document), bs)
	n += DigestMUS.Marshal(r.FileDigest, bs[n:])
	n += DigestMUS.Marshal(r.ContentDigest, bs[n:])
	n += varint.Uint64.Marshal(uint64(len(r.ChunkIDs)), bs[n:])
	for _, id := range r.ChunkIDs {
		n += marshalString(id, bs[n:])
	}
	n += varint.Int64.Marshal(r.ProcessedAt.UnixMicro(), bs[n:])
	return n
}

func (recordMUS) Unmarshal(bs []byte) (r Record, n int, err error) {
	doc, n, err := unmarshalString(bs)
	if err != nil {
		return r, n, err
	}
	r.Document = DocumentID(doc)

	var c int
	r.FileDigest, c, err = DigestMUS.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return r, n, err
	}
	r.ContentDigest, c, err = DigestMUS.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return r, n, err
	}

	count, c, err := varint.Uint64.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return r, n, err
	}
	if count > 0 {
		r.ChunkIDs = make([]string, 0, count)
		for i := uint64(0); i < count; i++ {
			var id string
			id, c, err = unmarshalString(bs[n:])
			n += c
			if err != nil {
				return r, n, err
			}
			r.ChunkIDs = append(r.ChunkIDs, id)
		}
	}

	micros, c, err := varint.Int64.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return r, n, err
	}
	r.ProcessedAt = time.UnixMicro(micros).UTC()
	return r, n, nil
}

func (recordMUS) Size(r Record) (size int) {
	size = sizeString(string(r.Document))
	size += 2 * DigestSize
	size += varint.Uint64.Size(uint64(len(r.ChunkIDs)))
	for _, id := range r.ChunkIDs {
		size += sizeString(id)
	}
	size += varint.Int64.Size(r.ProcessedAt.UnixMicro())
	return size
}

func (s recordMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// String helpers shared by the serializers: varint length prefix followed
// by the raw bytes.

func marshalString(v string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	n += copy(bs[n:], v)
	return n
}

func unmarshalString(bs []byte) (string, int, error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return "", n, err
	}
	if uint64(len(bs)-n) < length {
		return "", n, ErrTruncatedData
	}
	return string(bs[n : n+int(length)]), n + int(length), nil
}

func sizeString(v string) int {
	return varint.Uint64.Size(uint64(len(v))) + len(v)
}
