package acquisition

import "errors"

var (
	// ErrInvalidConfig indicates invalid engine configuration
	ErrInvalidConfig = errors.New("invalid acquisition configuration")

	// ErrNotRunning indicates the engine stopped before a timed acquisition finished
	ErrNotRunning = errors.New("acquisition is not running")
)
