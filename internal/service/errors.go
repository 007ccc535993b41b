package service

import (
	"errors"
	"fmt"
)

// Request-scoped failure classes. None of these may take the process down;
// the gateway decides per class whether anything is surfaced to the client.
var (
	ErrEmptyUsername      = errors.New("username must not be empty")
	ErrUnknownRoom        = errors.New("room does not exist")
	ErrUnknownRecipient   = errors.New("chat recipient is not a participant")
	ErrExecutionQueueFull = errors.New("execution queue is full")
)

// PersistenceError reports a failed write-through to the room store. The
// in-memory session state is NOT rolled back when this occurs; callers log it
// and carry on, so clients never see a failure for it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
