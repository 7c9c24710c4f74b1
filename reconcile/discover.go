package reconcile

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/docindex/core"
)

// supportedExtensions are the document types the extractor can handle.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".odt":  true,
	".rtf":  true,
	".txt":  true,
}

// DiscoverDocuments walks root and returns every supported document.
// A document's identity is its base file name, so moving a file between
// subdirectories does not change what it is. Hidden directories are
// skipped; a duplicate base name is logged and ignored.
func DiscoverDocuments(root string) ([]core.Document, error) {
	var docs []core.Document
	seen := make(map[core.DocumentID]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		id := core.DocumentID(d.Name())
		if prior, ok := seen[id]; ok {
			slog.Warn("duplicate document name, ignoring",
				"name", d.Name(), "kept", prior, "ignored", path)
			return nil
		}
		seen[id] = path

		docs = append(docs, core.Document{ID: id, Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
