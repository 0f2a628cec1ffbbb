package store

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a referenced user or conversation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness race could not be resolved.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned when a connection lease could not be acquired in time.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrValidation is returned for malformed input, before any storage access.
	ErrValidation = errors.New("invalid argument")
)
