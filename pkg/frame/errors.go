package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrReadTimeout is returned by a PacketReader when no packet arrived in time
	ErrReadTimeout = errors.New("read timeout")

	// ErrBadMagic indicates the stream did not resynchronize within the allowed attempts
	ErrBadMagic = errors.New("bad header magic")

	// ErrMalformed indicates a packet of the wrong size or content
	ErrMalformed = errors.New("malformed packet")
)

// Stage identifies where a decode failed
type Stage int

const (
	StageHeader Stage = iota
	StageChannels
)

func (s Stage) String() string {
	switch s {
	case StageHeader:
		return "header"
	case StageChannels:
		return "channels"
	default:
		return "unknown"
	}
}

// Reason classifies a decode failure
type Reason int

const (
	ReasonTimeout Reason = iota
	ReasonBadMagic
	ReasonMalformed
	ReasonTransport
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonBadMagic:
		return "bad magic"
	case ReasonMalformed:
		return "malformed"
	case ReasonTransport:
		return "transport"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// DecodeError describes a failed frame decode. Telemetry is set when the
// header was decoded before the failure.
type DecodeError struct {
	Stage     Stage
	Reason    Reason
	Err       error
	Telemetry *Telemetry
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("frame %s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
