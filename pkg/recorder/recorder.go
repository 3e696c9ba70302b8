// Package recorder periodically appends spectrum snapshots to a log file.
package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/herlein/gohama/pkg/spectrum"
)

// joinTimeout bounds how long Stop waits for the loop to exit
const joinTimeout = 2 * time.Second

// Source supplies the snapshots being logged
type Source interface {
	Reset()
	Snapshot() spectrum.Snapshot
}

// SnapshotStore is an optional second sink for logged snapshots
type SnapshotStore interface {
	CreateSession(ctx context.Context, deviceID string, config any) (string, error)
	StoreSnapshot(ctx context.Context, sessionID string, snap *spectrum.Snapshot, deltaT float64) error
}

// Session describes one logging run
type Session struct {
	ID        string
	Path      string
	Interval  time.Duration
	TotalTime time.Duration // Zero means log until stopped
	StartedAt time.Time

	storeID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// WithLogger sets the recorder's logger
func WithLogger(logger *slog.Logger) func(r *Recorder) {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithStore also writes every snapshot to store, tagged with deviceID
func WithStore(store SnapshotStore, deviceID string) func(r *Recorder) {
	return func(r *Recorder) {
		r.store = store
		r.deviceID = deviceID
	}
}

// Recorder runs at most one logging session at a time
type Recorder struct {
	source   Source
	store    SnapshotStore
	deviceID string
	logger   *slog.Logger

	mu         sync.Mutex
	session    *Session
	lastDeltaT float64
}

// New creates a recorder logging snapshots from source
func New(source Source, options ...func(r *Recorder)) *Recorder {
	r := Recorder{
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Start resets the source, creates the log file and starts logging every
// interval. When a session is already active it is returned unchanged.
func (r *Recorder) Start(base string, interval, totalTime time.Duration) (Session, error) {
	if interval <= 0 {
		return Session{}, ErrInvalidInterval
	}
	if totalTime < 0 {
		return Session{}, ErrNegativeTotalTime
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeLocked() {
		return *r.session, nil
	}

	r.source.Reset()

	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Path:      FileName(base, now),
		Interval:  interval,
		TotalTime: totalTime,
		StartedAt: now,
		done:      make(chan struct{}),
	}

	if err := createLog(s.Path); err != nil {
		return Session{}, err
	}

	if r.store != nil {
		id, err := r.store.CreateSession(context.Background(), r.deviceID, map[string]any{
			"log_session": s.ID,
			"path":        s.Path,
			"interval":    interval.String(),
			"total_time":  totalTime.String(),
		})
		if err != nil {
			r.logger.Warn("snapshot store unavailable, logging to file only", slog.String("error", err.Error()))
		}
		s.storeID = id
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	r.session = s
	r.lastDeltaT = 0

	r.logger.Info("logging started",
		slog.String("session", s.ID),
		slog.String("path", s.Path),
		slog.Duration("interval", interval),
		slog.Duration("total_time", totalTime))

	go r.loop(ctx, s)

	return *s, nil
}

// Stop ends the active session, waiting a bounded time for the loop to exit
func (r *Recorder) Stop() {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()

	select {
	case <-s.done:
	case <-time.After(joinTimeout):
		r.logger.Warn("logging loop did not exit in time", slog.String("session", s.ID))
	}
}

// Active reports whether a session is running
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Recorder) activeLocked() bool {
	if r.session == nil {
		return false
	}
	select {
	case <-r.session.done:
		return false
	default:
		return true
	}
}

// Current returns a copy of the running session, if any
func (r *Recorder) Current() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.activeLocked() {
		return Session{}, false
	}
	return *r.session, true
}

// LastDeltaT returns the interval, in seconds, before the most recent row
func (r *Recorder) LastDeltaT() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDeltaT
}

// Wait blocks until the active session ends or ctx is done
func (r *Recorder) Wait(ctx context.Context) error {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) loop(ctx context.Context, s *Session) {
	defer close(s.done)

	previous := s.StartedAt
	rows := 0
	for {
		if ctx.Err() != nil {
			return
		}

		now := time.Now()
		deltaT := now.Sub(previous).Seconds()
		previous = now

		r.mu.Lock()
		r.lastDeltaT = deltaT
		r.mu.Unlock()

		snap := r.source.Snapshot()

		if err := appendRow(s.Path, deltaT, snap.Spectrum); err != nil {
			r.logger.Error("failed to write log row", slog.String("session", s.ID), slog.String("error", err.Error()))
		} else {
			rows++
		}

		if s.storeID != "" {
			if err := r.store.StoreSnapshot(ctx, s.storeID, &snap, deltaT); err != nil {
				r.logger.Warn("failed to store snapshot", slog.String("session", s.ID), slog.String("error", err.Error()))
			}
		}

		r.logger.Debug("logged snapshot",
			slog.String("session", s.ID),
			slog.String("delta_t", fmt.Sprintf("%.3f", deltaT)),
			slog.Uint64("total", snap.Total))

		if s.TotalTime > 0 && now.Sub(s.StartedAt) >= s.TotalTime {
			r.logger.Info("logging complete", slog.String("session", s.ID), slog.Int("rows", rows))
			return
		}

		if err := sleep(ctx, s.Interval); err != nil {
			return
		}
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
