package report

import "errors"

var (
	// ErrStoreClosed indicates a write against a closed store.
	ErrStoreClosed = errors.New("report store is closed")

	// ErrRunNotFound indicates a lookup for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)
