// Package frame decodes the detector's binary frame protocol.
//
// A frame starts with a 64-byte packet holding a 16-byte big-endian header
// followed by the first 24 little-endian amplitudes. The remaining
// amplitudes arrive in full-size packets until MaxEvents values are filled.
package frame

import "encoding/binary"

// Protocol constants
const (
	// Magic marks the start of every frame header
	Magic uint32 = 0x5A5A5A5A

	// MaxEvents is the capacity of the amplitude array
	MaxEvents = 1048

	// HeaderSize is the length of the header at the start of the first packet
	HeaderSize = 16

	// FirstChunkEvents is the number of amplitudes carried by the first packet
	FirstChunkEvents = 24

	// FirstPacketSize is the exact length of the first packet of a frame
	FirstPacketSize = HeaderSize + 2*FirstChunkEvents

	// TimeIndexRate is the device clock rate in ticks per second
	TimeIndexRate = 10.0
)

// Temperature calibration
const (
	tempOffset = 188.686
	tempSlope  = 0.00348
)

// Header holds the fixed fields at the start of a frame
type Header struct {
	Magic      uint32
	EventCount uint16 // Valid entries in Amplitudes
	TimeIndex  uint16 // Device clock, 0.1 s ticks, wraps at 65536
	TempADC    uint16 // Raw temperature reading
}

// Telemetry is derived from a header as soon as it is decoded
type Telemetry struct {
	Temperature float64 // °C
	DeviceTime  float64 // Seconds since device power-up
}

// Frame is one decoded read cycle
type Frame struct {
	Header
	Telemetry  Telemetry
	Amplitudes [MaxEvents]uint16
}

// Events returns the valid amplitudes of the frame
func (f *Frame) Events() []uint16 {
	n := int(f.EventCount)
	if n > MaxEvents {
		n = MaxEvents
	}
	return f.Amplitudes[:n]
}

// ParseHeader decodes the first HeaderSize bytes of a packet.
// Layout: magic(4 BE) events(2 BE) reserved(2) time(2 BE) temp(2 BE) reserved(4)
func ParseHeader(b []byte) (Header, bool) {
	if len(b) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		EventCount: binary.BigEndian.Uint16(b[4:6]),
		TimeIndex:  binary.BigEndian.Uint16(b[8:10]),
		TempADC:    binary.BigEndian.Uint16(b[10:12]),
	}, true
}

// Temperature converts a raw ADC reading to °C
func Temperature(adc uint16) float64 {
	return tempOffset - tempSlope*float64(adc)
}
