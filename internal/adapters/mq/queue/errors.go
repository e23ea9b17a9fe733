package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrFull   = errors.New("archive queue full")
	ErrClosed = errors.New("archive queue closed")
)
