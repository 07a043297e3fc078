package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("training queue is full")
	ErrClosed = errors.New("training queue is closed")
)
