package restapi

import "errors"

var (
	// ErrRequestFailed indicates a non-2xx response from the service.
	ErrRequestFailed = errors.New("request failed")

	// ErrSeatAssignment indicates the seat operation did not return a
	// usable student identity and token.
	ErrSeatAssignment = errors.New("seat assignment did not return a usable token")
)
