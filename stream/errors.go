package stream

import "errors"

// Sentinel errors for streaming operations.
var (
	// ErrClientClosed is returned when a closed client is used again.
	// Close is terminal; a new Client must be constructed to reconnect.
	ErrClientClosed = errors.New("stream: client closed")

	// ErrNotConnected is returned by Send when no connection is established.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrManagerClosed is returned when a closed manager is used again.
	ErrManagerClosed = errors.New("stream: manager closed")
)
