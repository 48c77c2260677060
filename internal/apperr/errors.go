// Package apperr defines the error taxonomy shared by the indexing and query paths.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Per-item failures. Batch operations isolate these and keep going.
	ErrExtraction = errors.New("extraction failed")
	ErrDateParse  = errors.New("date missing or unparsable")
	ErrRender     = errors.New("render failed")

	// Engine failures. Fatal on the read path.
	ErrEngine         = errors.New("engine error")
	ErrIndexLocked    = errors.New("index is locked by another writer")
	ErrIndexMissing   = errors.New("index does not exist")
	ErrSchemaMismatch = errors.New("index schema version mismatch")

	ErrQuery = errors.New("invalid query")
)
