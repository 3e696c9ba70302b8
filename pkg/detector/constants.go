package detector

import "time"

// USB Device Identifiers
const (
	VendorID  = 0x0661 // Hamamatsu
	ProductID = 0x2917 // C12137 series
)

// USB Configuration
const (
	ConfigNumber    = 1
	InterfaceNumber = 0
	AltSetting      = 0
)

// Open sequence
const (
	DefaultResetCount = 2

	// settleDelay replaces the power cycle when uhubctl is unavailable
	settleDelay = 1 * time.Second

	// powerSettle is waited after each uhubctl power change
	powerSettle = 3 * time.Second

	drainReads   = 5
	drainTimeout = 10 * time.Millisecond
)
