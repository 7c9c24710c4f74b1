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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// DigestSize is the fingerprint length in bytes (BLAKE2b-256).
const DigestSize = 32

// Digest is a cryptographic fingerprint used to detect change without
// storing full content.
type Digest [DigestSize]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FileFingerprint derives the fingerprint of a document's raw bytes.
// Identical bytes always produce identical digests.
func FileFingerprint(data []byte) Digest {
	h, _ := blake2b.New(DigestSize, nil)
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ContentFingerprint derives the fingerprint of extracted text.
// The text is whitespace-normalized first so that re-encoded line endings
// or indentation changes do not register as content drift. It is
// deliberately independent of FileFingerprint: a re-saved file with
// byte-level differences but identical text keeps the same content digest.
func ContentFingerprint(text string) Digest {
	normalized := strings.Join(strings.Fields(text), " ")
	h, _ := blake2b.New(DigestSize, nil)
	h.Write([]byte(normalized))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ChunkID derives the deterministic identity of a chunk from its document
// identity and ordinal position. The identity is rendered as a UUID string
// because vector stores commonly require UUID point IDs. Re-chunking
// identical text yields identical IDs, which is what makes re-insertion
// idempotent.
func ChunkID(doc DocumentID, ordinal int) string {
	h, _ := blake2b.New(16, nil)
	fmt.Fprintf(h, "%s\x00%d", doc, ordinal)
	var u uuid.UUID
	copy(u[:], h.Sum(nil))
	return u.String()
}
