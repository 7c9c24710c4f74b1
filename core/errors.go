package core

import "errors"

var (
	// ErrTruncatedData indicates that serialized data ended before the
	// value was fully decoded.
	ErrTruncatedData = errors.New("truncated data")

	// ErrEmptyDocumentID indicates a document without a stable identity.
	ErrEmptyDocumentID = errors.New("empty document identity")
)

// Validate checks that a record is complete enough to persist.
func (r *Record) Validate() error {
	if r.Document == "" {
		return ErrEmptyDocumentID
	}
	if r.FileDigest.IsZero() {
		return errors.New("record has no file fingerprint")
	}
	if r.ContentDigest.IsZero() {
		return errors.New("record has no content fingerprint")
	}
	return nil
}
