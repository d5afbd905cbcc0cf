package expreplay

import "errors"

// Error describes a failed replay buffer operation.
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrInsufficientData reports that fewer transitions are stored than a
// Sample call requested.
var ErrInsufficientData = errors.New("insufficient transitions stored")

// IsInsufficientData returns whether err reports that the buffer holds
// too few transitions to fill a batch.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
