package session

import "errors"

// Session errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed session.
	ErrClosed = errors.New("session: closed")
)
