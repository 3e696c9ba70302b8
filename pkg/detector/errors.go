package detector

import "errors"

var (
	// ErrDeviceNotFound indicates no detector matched the selector
	ErrDeviceNotFound = errors.New("no detector found")

	// ErrAmbiguousDevice indicates more than one detector matched the selector
	ErrAmbiguousDevice = errors.New("multiple detectors match")

	// ErrInvalidSelector indicates a selector string that cannot be parsed
	ErrInvalidSelector = errors.New("invalid device selector")

	// ErrNoInEndpoint indicates the interface has no bulk IN endpoint
	ErrNoInEndpoint = errors.New("no IN endpoint")

	// ErrNoPortPath indicates the device location is unknown
	ErrNoPortPath = errors.New("device port path unknown")
)
