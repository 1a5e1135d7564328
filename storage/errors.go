package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when creating a resource whose key is
	// already taken.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrUnknownSchema is returned when an operation names a schema the
	// registry does not hold.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrForbidden is returned when redaction leaves nothing visible for
	// the request context. Operations check this before any I/O.
	ErrForbidden = errors.New("operation not permitted for this context")
)
