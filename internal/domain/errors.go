package domain

import "errors"

// Sentinel errors surfaced to callers. None of them is fatal to the
// process; each request either succeeds or fails independently.
var (
	// ErrNotFound indicates no record exists for the given identifier.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidRequest indicates the caller supplied no usable input,
	// such as a field map with no updatable fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStorageUnavailable indicates the backing store could not be
	// reached. Callers may retry; this layer does not.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
