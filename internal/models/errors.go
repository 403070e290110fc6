package models

import "errors"

var (
	// ErrUnsupportedQuery is returned for background queries other than the default corpus.
	ErrUnsupportedQuery = errors.New("unsupported background query")
	// ErrNotFound is returned when a pmid, query id, or concept id is absent.
	ErrNotFound = errors.New("not found")
	// ErrDataIntegrity marks upstream data that violates an invariant, such as a title
	// that does not start before its body.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrRowOutOfRange is returned when a table row index is outside the ranked terms.
	ErrRowOutOfRange = errors.New("row index out of range")
)
