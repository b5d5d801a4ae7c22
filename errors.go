package voynich

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a requested document or item does not exist.
// Callers match it with errors.Is to distinguish "no such document" from
// internal failures.
var ErrNotFound = errors.New("not found")

// ConversionError reports that an input document could not be converted to
// Markdown (unsupported format, corrupt file, decode failure). It is not
// retried; the original cause is preserved for diagnosis.
type ConversionError struct {
	Filename    string
	ContentType string
	Err         error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s (%s): %v", e.Filename, e.ContentType, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// SplitError reports a malformed splitter configuration or a violated
// splitting invariant. It is a programming or configuration error, fatal to
// the ingestion attempt.
type SplitError struct {
	Reason string
}

func (e *SplitError) Error() string { return "split: " + e.Reason }

// StoreError reports a failure from the retrieval façade. Chunk writes
// already committed before the failure are not rolled back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
