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


package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// Result is the outcome of extracting one document.
type Result struct {
	Text string
	// UsedOCR is set when the text came from the OCR fallback rather
	// than the document's own text layer.
	UsedOCR bool
}

// Extractor converts a document file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// FileExtractor dispatches on file extension. PDFs get the page-wise
// reader with an optional OCR fallback; .docx, .odt, .rtf and .txt go
// through a single converter.
type FileExtractor struct {
	ocr    OCR
	logger *slog.Logger
}

// Option configures a FileExtractor.
type Option func(*FileExtractor)

// WithOCR enables an OCR fallback for PDFs whose text layer is empty.
func WithOCR(ocr OCR) Option {
	return func(e *FileExtractor) {
		e.ocr = ocr
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *FileExtractor) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

var _ Extractor = (*FileExtractor)(nil)

// NewFileExtractor creates a FileExtractor.
func NewFileExtractor(opts ...Option) *FileExtractor {
	e := &FileExtractor{
		logger: slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts the file at path into plain text.
func (e *FileExtractor) Extract(ctx context.Context, path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".docx", ".odt", ".rtf", ".txt":
		return e.extractWithCat(path)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

func (e *FileExtractor) extractWithCat(path string) (Result, error) {
	text, err := cat.File(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text}, nil
}

func (e *FileExtractor) extractPDF(ctx context.Context, path string) (Result, error) {
	text, err := readPDFText(path, e.logger)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if strings.TrimSpace(text) != "" {
		return Result{Text: text}, nil
	}

	if e.ocr == nil {
		return Result{}, ErrNoText
	}

	e.logger.Info("empty text layer, falling back to OCR", "path", path)
	text, err = e.ocr.Recognize(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: ocr: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text, UsedOCR: true}, nil
}
