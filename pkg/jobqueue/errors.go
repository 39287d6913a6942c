package jobqueue

import (
	"errors"
	"fmt"
)

var (
	ErrEnqueue             = errors.New("enqueue failed")
	ErrQueueClosed         = errors.New("queue closed")
	ErrTransportClosed     = errors.New("transport closed")
	ErrProcessorRegistered = errors.New("processor already registered")
	ErrInvalidPayload      = errors.New("payload is not valid json")
)

// EnqueueError reports a job that was never created. It matches both
// ErrEnqueue and the underlying cause with errors.Is.
type EnqueueError struct {
	Type string
	Err  error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue %s: %v", e.Type, e.Err)
}

func (e *EnqueueError) Unwrap() []error {
	return []error{ErrEnqueue, e.Err}
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
