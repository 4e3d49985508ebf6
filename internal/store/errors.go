package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidTransition is returned when a message status change
	// violates the pending→claimed→sent/failed state machine, e.g. a
	// terminal row being marked again.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)
