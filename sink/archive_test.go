package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArchive_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	archive := NewFileArchive(dir)

	ts := time.Date(2025, 11, 3, 14, 30, 5, 0, time.UTC)
	path, err := archive.Save(context.Background(), "cert one.pdf", ts, "raw model output")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "extraction_cert_one.pdf_20251103_143005.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "raw model output", string(content))
}

func TestFileArchive_DistinctTimestampsDistinctFiles(t *testing.T) {
	archive := NewFileArchive(t.TempDir())
	ctx := context.Background()

	first, err := archive.Save(ctx, "a.pdf", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "one")
	require.NoError(t, err)
	second, err := archive.Save(ctx, "a.pdf", time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC), "two")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
