package frame

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// scriptedReader replays a fixed packet sequence, then times out
type scriptedReader struct {
	packets    [][]byte
	errs       map[int]error
	packetSize int
	reads      int
}

func (r *scriptedReader) ReadPacket(ctx context.Context, timeout time.Duration) ([]byte, error) {
	i := r.reads
	r.reads++
	if err, ok := r.errs[i]; ok {
		return nil, err
	}
	if i >= len(r.packets) {
		return nil, ErrReadTimeout
	}
	return r.packets[i], nil
}

func (r *scriptedReader) MaxPacketSize() int {
	return r.packetSize
}

func testFrame(events, timeIndex, tempADC uint16) *Frame {
	f := &Frame{Header: Header{Magic: Magic, EventCount: events, TimeIndex: timeIndex, TempADC: tempADC}}
	for i := 0; i < int(events); i++ {
		f.Amplitudes[i] = uint16(i * 7)
	}
	return f
}

func encodeFrames(t *testing.T, packetSize int, frames ...*Frame) [][]byte {
	t.Helper()
	var all [][]byte
	for _, f := range frames {
		packets, err := Encode(f, packetSize)
		if err != nil {
			t.Fatalf("Failed to encode frame: %v", err)
		}
		all = append(all, packets...)
	}
	return all
}

func TestDeviceClockRollover(t *testing.T) {
	var c DeviceClock
	var got float64
	for _, idx := range []uint16{65530, 65534, 3} {
		got = c.Update(idx)
	}

	if c.Overflows() != 1 {
		t.Errorf("Expected 1 overflow, got %d", c.Overflows())
	}
	want := (65536.0 + 3.0) / 10.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected device time %v, got %v", want, got)
	}
}

func TestDeviceClockReset(t *testing.T) {
	var c DeviceClock
	c.Update(65000)
	c.Update(10)
	c.Reset()

	if c.Overflows() != 0 || c.Seconds() != 0 {
		t.Errorf("Expected power-up state after reset, got overflows=%d seconds=%v", c.Overflows(), c.Seconds())
	}
	// Without the reset 65000 -> 5 would count as a wrap
	c.Update(5)
	if math.Abs(c.Seconds()-0.5) > 1e-9 {
		t.Errorf("Expected 0.5s after reset, got %v", c.Seconds())
	}
}

func TestDecoderClockTracksFrames(t *testing.T) {
	r := &scriptedReader{
		packets:    encodeFrames(t, 64, testFrame(10, 65530, 0), testFrame(10, 2, 0)),
		packetSize: 64,
	}
	d := NewDecoder(r)

	for i := 0; i < 2; i++ {
		if _, err := d.Decode(context.Background()); err != nil {
			t.Fatalf("Failed to decode frame %d: %v", i, err)
		}
	}

	if d.Clock().Overflows() != 1 {
		t.Errorf("Expected one rollover, got %d", d.Clock().Overflows())
	}
	want := (65536.0 + 2.0) / 10.0
	if math.Abs(d.Clock().Seconds()-want) > 1e-9 {
		t.Errorf("Expected clock at %v, got %v", want, d.Clock().Seconds())
	}
}

func TestDeviceClockSmallBackwardJump(t *testing.T) {
	var c DeviceClock
	c.Update(500)
	c.Update(100)
	if c.Overflows() != 0 {
		t.Errorf("Expected no overflow for a small backward jump, got %d", c.Overflows())
	}
}

func TestTemperature(t *testing.T) {
	got := Temperature(50000)
	if math.Abs(got-14.686) > 1e-9 {
		t.Errorf("Expected 14.686, got %v", got)
	}
}

func TestHeaderLayout(t *testing.T) {
	b := make([]byte, HeaderSize)
	PutHeader(b, Header{Magic: Magic, EventCount: 0x0102, TimeIndex: 0x0304, TempADC: 0x0506})

	want := []byte{0x5A, 0x5A, 0x5A, 0x5A, 0x01, 0x02, 0, 0, 0x03, 0x04, 0x05, 0x06, 0, 0, 0, 0}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("Byte %d: expected 0x%02X, got 0x%02X", i, want[i], b[i])
		}
	}

	h, ok := ParseHeader(b)
	if !ok {
		t.Fatal("Expected header to parse")
	}
	if h.EventCount != 0x0102 || h.TimeIndex != 0x0304 || h.TempADC != 0x0506 {
		t.Errorf("Unexpected header %+v", h)
	}
}

func TestEncodePacketSizes(t *testing.T) {
	packets, err := Encode(testFrame(10, 1, 1), 64)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	// 24 amplitudes in the first packet, 1024 more at 32 per packet
	if len(packets) != 1+32 {
		t.Fatalf("Expected 33 packets, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p) != 64 {
			t.Errorf("Packet %d: expected 64 bytes, got %d", i, len(p))
		}
	}

	if _, err := Encode(testFrame(1, 1, 1), 63); err == nil {
		t.Error("Expected error for odd packet size")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, size := range []int{64, 512} {
		want := testFrame(MaxEvents, 42, 50000)
		r := &scriptedReader{packets: encodeFrames(t, size, want), packetSize: size}

		got, err := NewDecoder(r).Decode(context.Background())
		if err != nil {
			t.Fatalf("Packet size %d: failed to decode: %v", size, err)
		}
		if got.Amplitudes != want.Amplitudes {
			t.Errorf("Packet size %d: amplitudes differ", size)
		}
		if got.EventCount != MaxEvents {
			t.Errorf("Packet size %d: expected %d events, got %d", size, MaxEvents, got.EventCount)
		}
		if math.Abs(got.Telemetry.DeviceTime-4.2) > 1e-9 {
			t.Errorf("Packet size %d: expected device time 4.2, got %v", size, got.Telemetry.DeviceTime)
		}
	}
}

func TestDecodeResync(t *testing.T) {
	junk := make([]byte, 64)
	copy(junk, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	packets := append([][]byte{junk, junk}, encodeFrames(t, 64, testFrame(5, 7, 100))...)
	r := &scriptedReader{packets: packets, packetSize: 64}
	d := NewDecoder(r)

	f, err := d.Decode(context.Background())
	if err != nil {
		t.Fatalf("Failed to decode after resync: %v", err)
	}
	if f.EventCount != 5 {
		t.Errorf("Expected 5 events, got %d", f.EventCount)
	}
	if d.Resyncs() != 2 {
		t.Errorf("Expected 2 resyncs, got %d", d.Resyncs())
	}
}

func TestDecodeMaxResync(t *testing.T) {
	junk := make([]byte, 64)
	r := &scriptedReader{packets: [][]byte{junk, junk, junk, junk}, packetSize: 64}

	_, err := NewDecoder(r, WithMaxResync(3)).Decode(context.Background())

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
	if de.Reason != ReasonBadMagic || !errors.Is(err, ErrBadMagic) {
		t.Errorf("Expected bad magic, got %v", err)
	}
	if r.reads != 3 {
		t.Errorf("Expected 3 reads, got %d", r.reads)
	}
}

func TestDecodeHeaderTimeout(t *testing.T) {
	r := &scriptedReader{packetSize: 64}

	_, err := NewDecoder(r).Decode(context.Background())

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
	if de.Stage != StageHeader || de.Reason != ReasonTimeout {
		t.Errorf("Expected header timeout, got %v", err)
	}
	if de.Telemetry != nil {
		t.Error("Expected no telemetry before a header was read")
	}
}

func TestDecodeChannelFailureCarriesTelemetry(t *testing.T) {
	packets := encodeFrames(t, 64, testFrame(100, 30, 50000))
	r := &scriptedReader{packets: packets[:5], packetSize: 64}

	_, err := NewDecoder(r).Decode(context.Background())

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
	if de.Stage != StageChannels || de.Reason != ReasonTimeout {
		t.Errorf("Expected channel timeout, got %v", err)
	}
	if de.Telemetry == nil {
		t.Fatal("Expected telemetry on channel failure")
	}
	if math.Abs(de.Telemetry.DeviceTime-3.0) > 1e-9 {
		t.Errorf("Expected device time 3.0, got %v", de.Telemetry.DeviceTime)
	}
	if math.Abs(de.Telemetry.Temperature-14.686) > 1e-9 {
		t.Errorf("Expected temperature 14.686, got %v", de.Telemetry.Temperature)
	}
}

func TestDecodeTransportError(t *testing.T) {
	broken := errors.New("pipe broken")
	r := &scriptedReader{errs: map[int]error{0: broken}, packetSize: 64}

	_, err := NewDecoder(r).Decode(context.Background())

	var de *DecodeError
	if !errors.As(err, &de) || de.Reason != ReasonTransport {
		t.Fatalf("Expected transport failure, got %v", err)
	}
	if !errors.Is(err, broken) {
		t.Error("Expected wrapped transport error")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		packets func() [][]byte
	}{
		{
			name: "short header",
			packets: func() [][]byte {
				return [][]byte{{0x5A, 0x5A}}
			},
		},
		{
			name: "oversized first packet",
			packets: func() [][]byte {
				b := make([]byte, 128)
				PutHeader(b, Header{Magic: Magic, EventCount: 1})
				return [][]byte{b}
			},
		},
		{
			name: "event count too large",
			packets: func() [][]byte {
				b := make([]byte, FirstPacketSize)
				PutHeader(b, Header{Magic: Magic, EventCount: MaxEvents + 1})
				return [][]byte{b}
			},
		},
		{
			name: "short channel packet",
			packets: func() [][]byte {
				p := encodeFrames(t, 64, testFrame(1, 1, 1))
				p[3] = p[3][:10]
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedReader{packets: tt.packets(), packetSize: 64}
			_, err := NewDecoder(r).Decode(context.Background())

			var de *DecodeError
			if !errors.As(err, &de) || de.Reason != ReasonMalformed {
				t.Fatalf("Expected malformed failure, got %v", err)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Error("Expected ErrMalformed in chain")
			}
		})
	}
}

func TestDecodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDecoder(NewSimulator(1)).Decode(ctx)

	var de *DecodeError
	if !errors.As(err, &de) || de.Reason != ReasonCanceled {
		t.Fatalf("Expected canceled failure, got %v", err)
	}
}

func TestSimulatorFrames(t *testing.T) {
	sim := NewSimulator(7)
	d := NewDecoder(sim)

	for i := 1; i <= 3; i++ {
		f, err := d.Decode(context.Background())
		if err != nil {
			t.Fatalf("Failed to decode simulated frame %d: %v", i, err)
		}
		if f.EventCount != SimEventCount {
			t.Errorf("Expected %d events, got %d", SimEventCount, f.EventCount)
		}
		if f.TimeIndex != uint16(i) {
			t.Errorf("Expected time index %d, got %d", i, f.TimeIndex)
		}
		if math.Abs(f.Telemetry.Temperature-14.686) > 1e-9 {
			t.Errorf("Expected temperature 14.686, got %v", f.Telemetry.Temperature)
		}
	}

	if sim.Frames() != 3 {
		t.Errorf("Expected 3 generated frames, got %d", sim.Frames())
	}
	if d.Resyncs() != 0 {
		t.Errorf("Expected no resyncs, got %d", d.Resyncs())
	}
}
