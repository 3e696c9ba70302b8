package recorder

import "errors"

var (
	// ErrInvalidInterval indicates a non-positive logging interval
	ErrInvalidInterval = errors.New("logging interval must be positive")

	// ErrNegativeTotalTime indicates a negative total logging time
	ErrNegativeTotalTime = errors.New("total logging time must not be negative")
)
