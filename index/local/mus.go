package local

import (
	"encoding/binary"
	"math"
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
)

// entryMUS serializes an index.Entry. Timestamps are stored as Unix
// microseconds, vectors as raw little-endian float32 bits.
var entryMUS = entrySer{}

type entrySer struct{}

var _ mus.Serializer[index.Entry] = entryMUS

func (entrySer) Marshal(e index.Entry, bs []byte) (n int) {
	n = marshalString(e.ID, bs)
	n += marshalString(string(e.Document), bs[n:])
	n += varint.Int64.Marshal(int64(e.Ordinal), bs[n:])
	n += marshalString(e.Text, bs[n:])
	n += varint.Uint64.Marshal(uint64(len(e.Vector)), bs[n:])
	for _, v := range e.Vector {
		binary.LittleEndian.PutUint32(bs[n:], math.Float32bits(v))
		n += 4
	}
	n += varint.Int64.Marshal(e.IngestedAt.UnixMicro(), bs[n:])
	return n
}

func (entrySer) Unmarshal(bs []byte) (e index.Entry, n int, err error) {
	e.ID, n, err = unmarshalString(bs)
	if err != nil {
		return e, n, err
	}

	var doc string
	var c int
	doc, c, err = unmarshalString(bs[n:])
	n += c
	if err != nil {
		return e, n, err
	}
	e.Document = core.DocumentID(doc)

	ordinal, c, err := varint.Int64.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return e, n, err
	}
	e.Ordinal = int(ordinal)

	e.Text, c, err = unmarshalString(bs[n:])
	n += c
	if err != nil {
		return e, n, err
	}

	dims, c, err := varint.Uint64.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return e, n, err
	}
	if uint64(len(bs)-n) < dims*4 {
		return e, n, core.ErrTruncatedData
	}
	if dims > 0 {
		e.Vector = make([]float32, dims)
		for i := range e.Vector {
			e.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(bs[n:]))
			n += 4
		}
	}

	micros, c, err := varint.Int64.Unmarshal(bs[n:])
	n += c
	if err != nil {
		return e, n, err
	}
	e.IngestedAt = time.UnixMicro(micros).UTC()
	return e, n, nil
}

func (entrySer) Size(e index.Entry) (size int) {
	size = sizeString(e.ID)
	size += sizeString(string(e.Document))
	size += varint.Int64.Size(int64(e.Ordinal))
	size += sizeString(e.Text)
	size += varint.Uint64.Size(uint64(len(e.Vector)))
	size += 4 * len(e.Vector)
	size += varint.Int64.Size(e.IngestedAt.UnixMicro())
	return size
}

func (s entrySer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

func marshalEntry(e index.Entry) []byte {
	buf := make([]byte, entryMUS.Size(e))
	entryMUS.Marshal(e, buf)
	return buf
}

func unmarshalEntry(data []byte) (index.Entry, error) {
	e, _, err := entryMUS.Unmarshal(data)
	return e, err
}

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
		return "", n, core.ErrTruncatedData
	}
	return string(bs[n : n+int(length)]), n + int(length), nil
}

func sizeString(v string) int {
	return varint.Uint64.Size(uint64(len(v))) + len(v)
}
