package checkpointer

import "errors"

// ErrNoCheckpoint indicates that a run has no saved checkpoints.
var ErrNoCheckpoint = errors.New("no checkpoint saved")

// Error wraps checkpoint failures with the operation that caused them.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsNoCheckpoint returns whether err reports an empty checkpoint store.
func IsNoCheckpoint(err error) bool {
	return errors.Is(err, ErrNoCheckpoint)
}
