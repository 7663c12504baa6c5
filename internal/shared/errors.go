package shared

import "errors"

var (
	// ErrNotFound indicates a referenced role, permission, user or grant is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate code or a delete of an in-use entry.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input such as a bad permission code.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates a mutation of a reserved role or a referenced permission.
	ErrForbidden = errors.New("forbidden")
)
