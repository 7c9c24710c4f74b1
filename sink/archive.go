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


package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/docindex/core"
)

// FileArchive writes raw model responses to a directory, one file per
// extraction, named extraction_<document>_<timestamp>.txt.
type FileArchive struct {
	dir string
}

var _ Archive = (*FileArchive)(nil)

// NewFileArchive creates an archive rooted at dir. The directory is
// created on first save.
func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{dir: dir}
}

// Save writes the raw response and returns the file path.
func (a *FileArchive) Save(ctx context.Context, doc core.DocumentID, ts time.Time, raw string) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("extraction_%s_%s.txt",
		sanitizeName(string(doc)), ts.UTC().Format("20060102_150405"))
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// sanitizeName keeps document identities usable as file names.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
