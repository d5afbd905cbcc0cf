package grid

import "errors"

var (
	errNoCandidates = errors.New("no candidate values")
	errNotPositive  = errors.New("must be positive")
)

// ConfigError reports an unusable Space field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "space: " + e.Field + " " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
