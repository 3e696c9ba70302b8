package frame

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// DefaultReadTimeout bounds a single packet read
const DefaultReadTimeout = 100 * time.Millisecond

// PacketReader supplies raw packets from the device
type PacketReader interface {
	// ReadPacket returns one packet of at most MaxPacketSize bytes. It returns
	// an error wrapping ErrReadTimeout when nothing arrives within timeout.
	ReadPacket(ctx context.Context, timeout time.Duration) ([]byte, error)
	MaxPacketSize() int
}

// WithLogger sets the logger used to report resynchronization
func WithLogger(logger *slog.Logger) func(d *Decoder) {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithReadTimeout sets the per-packet read timeout
func WithReadTimeout(timeout time.Duration) func(d *Decoder) {
	return func(d *Decoder) {
		d.readTimeout = timeout
	}
}

// WithMaxResync bounds the number of packets discarded while looking for a
// valid header. Zero means no bound; a read timeout still ends the search.
func WithMaxResync(n int) func(d *Decoder) {
	return func(d *Decoder) {
		d.maxResync = n
	}
}

// Decoder reads frames from one device session. It carries the session's
// DeviceClock, so a new Decoder is created for every session.
type Decoder struct {
	reader      PacketReader
	clock       DeviceClock
	readTimeout time.Duration
	maxResync   int
	resyncs     uint64
	logger      *slog.Logger
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r PacketReader, options ...func(d *Decoder)) *Decoder {
	d := Decoder{
		reader:      r,
		readTimeout: DefaultReadTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Resyncs returns the number of packets discarded for a bad header
func (d *Decoder) Resyncs() uint64 {
	return d.resyncs
}

// Clock returns the session's device clock
func (d *Decoder) Clock() *DeviceClock {
	return &d.clock
}

// Decode reads one complete frame. On failure the returned error is a
// *DecodeError and no partial frame is returned.
func (d *Decoder) Decode(ctx context.Context) (*Frame, error) {
	first, header, err := d.readHeader(ctx)
	if err != nil {
		return nil, err
	}

	// Telemetry is published from the header before the channels are read
	f := &Frame{Header: header}
	f.Telemetry = Telemetry{
		DeviceTime:  d.clock.Update(header.TimeIndex),
		Temperature: Temperature(header.TempADC),
	}

	if err := d.readChannels(ctx, f, first[HeaderSize:]); err != nil {
		tel := f.Telemetry
		err.Telemetry = &tel
		return nil, err
	}

	return f, nil
}

// readHeader reads packets until one starts with Magic
func (d *Decoder) readHeader(ctx context.Context) ([]byte, Header, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, Header{}, &DecodeError{Stage: StageHeader, Reason: ReasonCanceled, Err: err}
		}

		packet, err := d.reader.ReadPacket(ctx, d.readTimeout)
		if err != nil {
			return nil, Header{}, readFailure(ctx, StageHeader, err)
		}

		header, ok := ParseHeader(packet)
		if !ok {
			return nil, Header{}, &DecodeError{
				Stage:  StageHeader,
				Reason: ReasonMalformed,
				Err:    fmt.Errorf("%w: header packet is %d bytes", ErrMalformed, len(packet)),
			}
		}

		if header.Magic == Magic {
			return packet, header, nil
		}

		d.resyncs++
		d.logger.Debug("bad header start value, resyncing data frame",
			slog.String("magic", fmt.Sprintf("0x%08X", header.Magic)),
			slog.Int("attempt", attempt))

		if d.maxResync > 0 && attempt >= d.maxResync {
			return nil, Header{}, &DecodeError{
				Stage:  StageHeader,
				Reason: ReasonBadMagic,
				Err:    fmt.Errorf("%w: gave up after %d packets", ErrBadMagic, attempt),
			}
		}
	}
}

// readChannels fills f.Amplitudes from the header remnant and the following packets
func (d *Decoder) readChannels(ctx context.Context, f *Frame, remnant []byte) *DecodeError {
	if int(f.EventCount) > MaxEvents {
		return &DecodeError{
			Stage:  StageChannels,
			Reason: ReasonMalformed,
			Err:    fmt.Errorf("%w: event count %d exceeds %d", ErrMalformed, f.EventCount, MaxEvents),
		}
	}

	if len(remnant) != 2*FirstChunkEvents {
		return &DecodeError{
			Stage:  StageChannels,
			Reason: ReasonMalformed,
			Err:    fmt.Errorf("%w: first packet carries %d amplitude bytes, want %d", ErrMalformed, len(remnant), 2*FirstChunkEvents),
		}
	}
	decodeAmplitudes(f.Amplitudes[:FirstChunkEvents], remnant)

	packetSize := d.reader.MaxPacketSize()
	words := packetSize / 2
	if words == 0 {
		return &DecodeError{
			Stage:  StageChannels,
			Reason: ReasonMalformed,
			Err:    fmt.Errorf("%w: max packet size %d", ErrMalformed, packetSize),
		}
	}

	for address := FirstChunkEvents; address < MaxEvents; address += words {
		if err := ctx.Err(); err != nil {
			return &DecodeError{Stage: StageChannels, Reason: ReasonCanceled, Err: err}
		}

		packet, err := d.reader.ReadPacket(ctx, d.readTimeout)
		if err != nil {
			return readFailure(ctx, StageChannels, err)
		}
		if len(packet) != 2*words {
			return &DecodeError{
				Stage:  StageChannels,
				Reason: ReasonMalformed,
				Err:    fmt.Errorf("%w: channel packet at %d is %d bytes, want %d", ErrMalformed, address, len(packet), 2*words),
			}
		}

		end := min(address+words, MaxEvents)
		decodeAmplitudes(f.Amplitudes[address:end], packet)
	}

	return nil
}

// decodeAmplitudes unpacks little-endian 16-bit values into dst
func decodeAmplitudes(dst []uint16, src []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(src[2*i:])
	}
}

// readFailure classifies a PacketReader error
func readFailure(ctx context.Context, stage Stage, err error) *DecodeError {
	reason := ReasonTransport
	switch {
	case ctx.Err() != nil:
		reason = ReasonCanceled
	case errors.Is(err, ErrReadTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded):
		reason = ReasonTimeout
	}
	return &DecodeError{Stage: stage, Reason: reason, Err: err}
}
