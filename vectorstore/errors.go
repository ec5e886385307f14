package vectorstore

import "errors"

var (
	// ErrCrossCaseAccess is returned when a caller requests a collection
	// that does not belong to the active case and is not shared.
	ErrCrossCaseAccess = errors.New("vectorstore: cross-case collection access refused")
	// ErrNotFound is returned when a chunk, document, or fact id has no
	// matching row in the case database.
	ErrNotFound = errors.New("vectorstore: not found")
)
