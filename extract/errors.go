package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed indicates a document could not be converted to
	// text. The document is failed; the run continues.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrUnsupportedType indicates a file extension no extractor handles.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrNoText indicates extraction succeeded mechanically but produced
	// no usable text. It is a kind of ErrExtractionFailed.
	ErrNoText = fmt.Errorf("%w: document contains no extractable text", ErrExtractionFailed)
)
