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


package chunk

import (
	"strings"

	"github.com/poiesic/docindex/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults tuned for embedding models with modest context windows.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 80
)

// Chunker splits document text recursively on paragraph, line, and word
// boundaries.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size < 1 {
			return ErrInvalidChunkSize
		}
		c.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidChunkOverlap
		}
		c.chunkOverlap = overlap
		return nil
	}
}

// NewChunker creates a Chunker with the default size and overlap unless
// overridden by options.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.chunkOverlap >= c.chunkSize {
		return nil, ErrInvalidChunkOverlap
	}
	return c, nil
}

// Split divides text into chunks for the given document. Chunk
// identities are derived from the document identity and the chunk's
// position, so repeated splits of unchanged text produce identical
// results. Blank text yields no chunks.
func (c *Chunker) Split(doc core.DocumentID, text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
	)

	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, core.Chunk{
			ID:       core.ChunkID(doc, i),
			Document: doc,
			Ordinal:  i,
			Text:     piece,
		})
	}
	return chunks, nil
}
