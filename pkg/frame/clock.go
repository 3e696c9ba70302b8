package frame

// rolloverThreshold is the backward jump that counts as a counter wrap
const rolloverThreshold = 65000

// DeviceClock turns the wrapping 16-bit time index into monotonic seconds.
// The hardware counter restarts at power-up, so a new clock is used for
// every device session.
type DeviceClock struct {
	overflows uint64
	previous  uint16
}

// Update records a time index and returns the device time in seconds
func (c *DeviceClock) Update(index uint16) float64 {
	if int(c.previous)-int(index) > rolloverThreshold {
		c.overflows++
	}
	c.previous = index
	return c.Seconds()
}

// Seconds returns the device time of the last update
func (c *DeviceClock) Seconds() float64 {
	return (65536*float64(c.overflows) + float64(c.previous)) / TimeIndexRate
}

// Overflows returns the number of counter wraps seen
func (c *DeviceClock) Overflows() uint64 {
	return c.overflows
}

// Reset returns the clock to its power-up state
func (c *DeviceClock) Reset() {
	c.overflows = 0
	c.previous = 0
}
