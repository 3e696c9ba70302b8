package spectrum

import "errors"

var (
	// ErrInvalidBinFactor indicates a binning factor that would overflow the spectrum
	ErrInvalidBinFactor = errors.New("invalid bin factor")

	// ErrInvalidWindow indicates a non-positive rate window
	ErrInvalidWindow = errors.New("rate window must be positive")
)
