package frame

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulated device parameters
const (
	SimEventCount = 1000
	SimTempADC    = 50000
	SimPacketSize = 64

	// simTimeModulus matches the hardware simulation's wrap point
	simTimeModulus = 65336
)

// Simulator is a PacketReader that synthesizes the byte stream of a
// detector, so simulated frames take the same decode path as real ones.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	timeIndex uint16
	pending   [][]byte
	frames    uint64
}

// NewSimulator creates a simulator with a seeded random source
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// MaxPacketSize returns the simulated endpoint's packet size
func (s *Simulator) MaxPacketSize() int {
	return SimPacketSize
}

// ReadPacket returns the next packet, generating a new frame when needed
func (s *Simulator) ReadPacket(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		packets, err := Encode(s.nextFrame(), SimPacketSize)
		if err != nil {
			return nil, err
		}
		s.pending = packets
	}

	packet := s.pending[0]
	s.pending = s.pending[1:]
	return packet, nil
}

// Frames returns the number of frames generated
func (s *Simulator) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Simulator) nextFrame() *Frame {
	s.timeIndex = uint16((uint32(s.timeIndex) + 1) % simTimeModulus)
	s.frames++

	f := &Frame{Header: Header{
		Magic:      Magic,
		EventCount: SimEventCount,
		TimeIndex:  s.timeIndex,
		TempADC:    SimTempADC,
	}}
	for i := 0; i < SimEventCount; i++ {
		f.Amplitudes[i] = uint16(s.rng.Intn(65536))
	}
	return f
}
