package queue

import "errors"

// Sentinel errors for cursor loading.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
