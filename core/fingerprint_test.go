package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFingerprint_Deterministic(t *testing.T) {
	data := []byte("certificate of completion")

	a := FileFingerprint(data)
	b := FileFingerprint(data)

	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestFileFingerprint_SensitiveToChange(t *testing.T) {
	a := FileFingerprint([]byte("version one"))
	b := FileFingerprint([]byte("version two"))

	assert.NotEqual(t, a, b)
}

func TestContentFingerprint_NormalizesWhitespace(t *testing.T) {
	a := ContentFingerprint("hello   world\nsecond line")
	b := ContentFingerprint("hello world\r\nsecond\tline")

	// Differently-encoded whitespace must not register as drift.
	assert.Equal(t, a, b)

	c := ContentFingerprint("hello world second lines")
	assert.NotEqual(t, a, c)
}

func TestContentFingerprint_IndependentOfFileFingerprint(t *testing.T) {
	text := "same extracted text"

	file := FileFingerprint([]byte(text))
	content := ContentFingerprint(text)

	assert.NotEqual(t, file, content)
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("report.pdf", 0)
	b := ChunkID("report.pdf", 0)

	assert.Equal(t, a, b)
	assert.Len(t, a, 36) // UUID string form

	assert.NotEqual(t, a, ChunkID("report.pdf", 1))
	assert.NotEqual(t, a, ChunkID("other.pdf", 0))
}

func TestRecordMUS_RoundTrip(t *testing.T) {
	record := Record{
		Document:      "diploma.pdf",
		FileDigest:    FileFingerprint([]byte("raw bytes")),
		ContentDigest: ContentFingerprint("extracted text"),
		ChunkIDs:      []string{ChunkID("diploma.pdf", 0), ChunkID("diploma.pdf", 1)},
		ProcessedAt:   time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC),
	}

	bs := make([]byte, RecordMUS.Size(record))
	n := RecordMUS.Marshal(record, bs)
	require.Equal(t, len(bs), n)

	decoded, n, err := RecordMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, record, decoded)
}

func TestRecordMUS_RoundTripEmptyChunkList(t *testing.T) {
	record := Record{
		Document:      "empty.pdf",
		FileDigest:    FileFingerprint([]byte("a")),
		ContentDigest: ContentFingerprint("b"),
		ProcessedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	bs := make([]byte, RecordMUS.Size(record))
	RecordMUS.Marshal(record, bs)

	decoded, _, err := RecordMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Empty(t, decoded.ChunkIDs)
	assert.Equal(t, record.ProcessedAt, decoded.ProcessedAt)
}

func TestRecordMUS_Truncated(t *testing.T) {
	record := Record{
		Document:      "doc.pdf",
		FileDigest:    FileFingerprint([]byte("x")),
		ContentDigest: ContentFingerprint("y"),
		ProcessedAt:   time.Now().UTC(),
	}

	bs := make([]byte, RecordMUS.Size(record))
	RecordMUS.Marshal(record, bs)

	_, _, err := RecordMUS.Unmarshal(bs[:10])
	require.Error(t, err)
}

func TestRecordValidate(t *testing.T) {
	record := Record{
		Document:      "doc.pdf",
		FileDigest:    FileFingerprint([]byte("x")),
		ContentDigest: ContentFingerprint("y"),
	}
	require.NoError(t, record.Validate())

	record.Document = ""
	assert.ErrorIs(t, record.Validate(), ErrEmptyDocumentID)
}
