package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed connection.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no message handler is configured.
	ErrNoHandler = errors.New("transport: no handler configured")

	// ErrNotReady is returned when a write is attempted while the connection
	// is not in the ready state.
	ErrNotReady = errors.New("transport: connection not ready")

	// ErrAlreadyStarted is returned when Open is called on an already opened
	// connection.
	ErrAlreadyStarted = errors.New("transport: already started")
)
