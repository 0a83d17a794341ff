package socket

import "errors"

var (
	// ErrConnectionClosed indicates an operation on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrWriteTimeout indicates the outbound queue stayed full too long.
	ErrWriteTimeout = errors.New("write timeout")
)
