package acquisition

import (
	"context"
	"sync"

	"github.com/herlein/gohama/pkg/frame"
)

// Session is one open connection to a detector
type Session interface {
	frame.PacketReader
	Close() error
}

// SessionOpener opens a new Session. It is called again after every
// failed open and every lost session.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to SessionOpener
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

type simSession struct {
	*frame.Simulator
}

func (simSession) Close() error {
	return nil
}

// SimulatorOpener opens simulated detector sessions. Each session gets its
// own Simulator, so its time index restarts like a power-cycled device.
func SimulatorOpener(seed int64) SessionOpener {
	var mu sync.Mutex
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		seed++
		return simSession{frame.NewSimulator(seed)}, nil
	})
}

// trackedSession closes the underlying session at most once, so Stop can
// force it closed while the acquisition goroutine is still running
type trackedSession struct {
	Session
	once sync.Once
	err  error
}

func (s *trackedSession) Close() error {
	s.once.Do(func() {
		s.err = s.Session.Close()
	})
	return s.err
}
