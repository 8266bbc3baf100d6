package dc

import "errors"

// Registry errors.
var (
	// ErrNotFound is returned when an operation references a DC id that
	// has never been created.
	ErrNotFound = errors.New("dc: not found")

	// ErrInvalidAuthKey is returned when SetAuthKey is given a key of the
	// wrong length.
	ErrInvalidAuthKey = errors.New("dc: auth key must be 256 bytes")
)
