// Package acquisition runs the detector polling loop and owns the
// accumulated spectrum.
package acquisition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/herlein/gohama/pkg/frame"
	"github.com/herlein/gohama/pkg/recorder"
	"github.com/herlein/gohama/pkg/spectrum"
)

// WithLogger sets the engine's logger. The recorder shares it.
func WithLogger(logger *slog.Logger) func(e *Engine) {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig replaces the default configuration
func WithConfig(cfg *Config) func(e *Engine) {
	return func(e *Engine) {
		e.cfg = *cfg
	}
}

// WithClock sets the time source used for elapsed time and rate samples
func WithClock(now func() time.Time) func(e *Engine) {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRecorderOptions passes options to the engine's snapshot recorder
func WithRecorderOptions(options ...func(r *recorder.Recorder)) func(e *Engine) {
	return func(e *Engine) {
		e.recorderOptions = append(e.recorderOptions, options...)
	}
}

// Engine acquires frames in a background goroutine and accumulates them.
// All shared state is guarded by mu; no I/O happens while it is held.
type Engine struct {
	opener          SessionOpener
	cfg             Config
	logger          *slog.Logger
	now             func() time.Time
	recorder        *recorder.Recorder
	recorderOptions []func(r *recorder.Recorder)

	mu        sync.Mutex
	state     State
	lastErr   error
	spectrum  spectrum.Spectrum
	origin    time.Time
	elapsed   time.Duration
	telemetry frame.Telemetry
	rate      *spectrum.RateWindow
	stats     Stats
	cancel    context.CancelFunc
	done      chan struct{}
	session   *trackedSession
}

// New creates an engine reading sessions from opener
func New(opener SessionOpener, options ...func(e *Engine)) (*Engine, error) {
	e := &Engine{
		opener: opener,
		cfg:    *DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, option := range options {
		option(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	rate, err := spectrum.NewRateWindowWithSpan(e.cfg.RateWindow)
	if err != nil {
		return nil, err
	}
	e.rate = rate
	e.telemetry.Temperature = math.NaN()
	e.origin = e.now()

	opts := append([]func(r *recorder.Recorder){recorder.WithLogger(e.logger)}, e.recorderOptions...)
	e.recorder = recorder.New(e, opts...)

	return e, nil
}

// Start launches the acquisition goroutine. It does nothing if the engine
// is already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = StateConnecting
	e.lastErr = nil
	e.origin = e.now()
	e.elapsed = 0

	e.logger.Info("acquisition started")

	go e.run(ctx, e.done)
}

// Stop stops logging and acquisition, waiting a bounded time for the
// goroutine to exit. It does nothing if the engine is not running.
func (e *Engine) Stop() {
	if !e.Running() {
		return
	}

	// The recorder goes first; its snapshots would restart a stopped engine
	e.recorder.Stop()

	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.cancel = nil
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
	case <-time.After(e.cfg.StopTimeout):
		e.logger.Warn("acquisition loop did not exit in time, closing transport",
			slog.Duration("timeout", e.cfg.StopTimeout))

		e.mu.Lock()
		s := e.session
		e.mu.Unlock()
		if s != nil {
			if err := s.Close(); err != nil {
				e.logger.Warn("failed to close transport", slog.String("error", err.Error()))
			}
		}
	}

	e.mu.Lock()
	if e.done == done {
		e.state = StateStopped
	}
	e.mu.Unlock()

	e.logger.Info("acquisition stopped")
}

// Running reports whether the acquisition goroutine has been started and not stopped
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Reset zeroes the spectrum, restarts elapsed time and clears the rate window
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.spectrum.Reset()
	e.origin = e.now()
	e.elapsed = 0
	e.rate.Clear()
}

// Snapshot returns a consistent copy of the accumulated state. If the engine
// is not running it is started and given a short grace period first.
func (e *Engine) Snapshot() spectrum.Snapshot {
	if !e.Running() {
		e.Start()
		time.Sleep(e.cfg.SnapshotGrace)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return spectrum.Snapshot{
		Spectrum:    e.spectrum.Counts(),
		Total:       e.spectrum.Total(),
		Elapsed:     e.elapsed,
		CPS:         e.rate.CPS(),
		Temperature: e.telemetry.Temperature,
		DeviceTime:  e.telemetry.DeviceTime,
		TakenAt:     e.now(),
	}
}

// Status returns the state, last error and counters
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{State: e.state, LastErr: e.lastErr, Stats: e.stats}
}

// AcquireFor starts the engine if needed, resets the spectrum, accumulates
// for d and returns the resulting snapshot
func (e *Engine) AcquireFor(ctx context.Context, d time.Duration) (spectrum.Snapshot, error) {
	e.Start()
	e.Reset()

	if err := sleep(ctx, d); err != nil {
		return spectrum.Snapshot{}, err
	}
	if !e.Running() {
		return spectrum.Snapshot{}, ErrNotRunning
	}

	return e.Snapshot(), nil
}

// StartLogging starts the engine if needed and begins periodic snapshot
// logging. It returns the logging session, which may already be finished by
// the time the caller looks at it.
func (e *Engine) StartLogging(base string, interval, totalTime time.Duration) (recorder.Session, error) {
	e.Start()
	return e.recorder.Start(base, interval, totalTime)
}

// StopLogging ends periodic snapshot logging
func (e *Engine) StopLogging() {
	e.recorder.Stop()
}

// Recorder returns the engine's snapshot recorder
func (e *Engine) Recorder() *recorder.Recorder {
	return e.recorder
}

// run opens sessions until ctx is canceled
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		e.setState(done, StateConnecting, nil)

		sess, err := e.opener.Open(ctx)
		if err != nil {
			if e.commit(ctx, func() { e.stats.OpenFailures++ }) != nil {
				break
			}
			e.setState(done, StateConnecting, err)
			e.logger.Warn("failed to open detector, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", e.cfg.ReconnectBackoff))
		} else if err := e.runSession(ctx, done, sess); err != nil {
			if ctx.Err() != nil {
				break
			}
			e.setState(done, StateConnecting, err)
			e.logger.Warn("detector session lost, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", e.cfg.ReconnectBackoff))
		}

		if sleep(ctx, e.cfg.ReconnectBackoff) != nil {
			break
		}
	}
}

// runSession reads frames from one session until a decode fails or ctx is canceled.
// The session is closed before returning.
func (e *Engine) runSession(ctx context.Context, done chan struct{}, sess Session) error {
	s := &trackedSession{Session: sess}

	err := e.commit(ctx, func() {
		e.session = s
		e.stats.SessionsOpened++
	})
	if err != nil {
		s.Close()
		return err
	}
	e.setState(done, StateRunning, nil)

	decoder := frame.NewDecoder(s,
		frame.WithLogger(e.logger),
		frame.WithReadTimeout(e.cfg.ReadTimeout),
		frame.WithMaxResync(e.cfg.MaxResync))

	defer func() {
		// A stopped run that outlived its stop timeout must not touch a newer run's session
		e.mu.Lock()
		if e.session == s {
			e.session = nil
			e.stats.Resyncs += decoder.Resyncs()
		}
		e.mu.Unlock()

		if err := s.Close(); err != nil {
			e.logger.Warn("failed to close detector session", slog.String("error", err.Error()))
		}
	}()

	var hist spectrum.Histogram
	for {
		if err := sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}

		f, err := decoder.Decode(ctx)
		if err != nil {
			var de *frame.DecodeError
			hasTelemetry := errors.As(err, &de) && de.Telemetry != nil
			if cerr := e.commit(ctx, func() {
				if hasTelemetry {
					e.telemetry = *de.Telemetry
				}
				e.stats.DecodeFailures++
			}); cerr != nil {
				return cerr
			}
			return err
		}

		if f.EventCount == 0 {
			if err := e.commit(ctx, func() {
				e.telemetry = f.Telemetry
				e.stats.FramesSkipped++
			}); err != nil {
				return err
			}
			continue
		}

		spectrum.Fill(&hist, f.Events(), e.cfg.BinFactor)
		now := e.now()

		if err := e.commit(ctx, func() {
			e.spectrum.Merge(&hist)
			e.elapsed = now.Sub(e.origin)
			e.telemetry = f.Telemetry
			e.rate.Update(now, e.spectrum.Total())
			e.stats.FramesMerged++
		}); err != nil {
			return err
		}
	}
}

// commit applies fn under the lock unless ctx has been canceled. Stop cancels
// while holding the lock, so nothing from a stopped run lands after Stop.
func (e *Engine) commit(ctx context.Context, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// setState updates the state unless a newer run has replaced this one
func (e *Engine) setState(done chan struct{}, state State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != done || e.cancel == nil {
		return
	}
	e.state = state
	if err != nil {
		e.lastErr = err
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
