package store

import "errors"

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrConnection indicates the store could not be reached.
	ErrConnection = errors.New("store connection failed")
	// ErrProtocol indicates the store rejected the operation or returned a
	// malformed response.
	ErrProtocol = errors.New("store protocol error")
	// ErrClosed is returned when operations run on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrServerNotConfigured is returned by the connection manager for an
	// unknown server id.
	ErrServerNotConfigured = errors.New("server is not configured")
)
