package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict indicates a uniqueness violation on create.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates an authorization denial.
	ErrForbidden = errors.New("forbidden")
)
