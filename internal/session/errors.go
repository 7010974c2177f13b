package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown or expired session ids
	ErrNotFound = errors.New("session not found")

	// ErrInvalidTransition is matched by StageError
	ErrInvalidTransition = errors.New("action not allowed in current stage")

	// ErrIndexOutOfRange is matched by IndexOutOfRangeError
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrBusy is returned when a session already has an extraction or
	// generation call in flight
	ErrBusy = errors.New("session is busy")

	// ErrStale is returned when a blocking call finished after the session
	// moved on. Its result was discarded.
	ErrStale = errors.New("session changed while the request was running")
)

// StageError is returned when an action is attempted from a stage that does
// not allow it
type StageError struct {
	Action Action
	Stage  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cannot %s in stage %s", e.Action, e.Stage)
}

func (e *StageError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IndexOutOfRangeError is returned when an ingredient or recipe index does
// not exist
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
