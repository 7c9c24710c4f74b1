package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileExtractor_PlainText(t *testing.T) {
	extractor := NewFileExtractor()
	path := writeTempFile(t, "doc.txt", "hello from a text file")

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello from a text file", result.Text)
	assert.False(t, result.UsedOCR)
}

func TestFileExtractor_UnsupportedType(t *testing.T) {
	extractor := NewFileExtractor()
	path := writeTempFile(t, "doc.xyz", "payload")

	_, err := extractor.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFileExtractor_EmptyText(t *testing.T) {
	extractor := NewFileExtractor()
	path := writeTempFile(t, "doc.txt", "   \n ")

	_, err := extractor.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestFileExtractor_BrokenPDF(t *testing.T) {
	extractor := NewFileExtractor()
	path := writeTempFile(t, "doc.pdf", "not a pdf at all")

	_, err := extractor.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

type staticOCR struct {
	text string
	err  error
}

func (o *staticOCR) Recognize(ctx context.Context, path string) (string, error) {
	return o.text, o.err
}

func TestFileExtractor_ExtensionCaseInsensitive(t *testing.T) {
	extractor := NewFileExtractor(WithOCR(&staticOCR{text: "unused"}))
	path := writeTempFile(t, "doc.TXT", "upper case extension")

	result, err := extractor.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "upper case extension", result.Text)
}
