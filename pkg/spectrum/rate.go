package spectrum

import "time"

// DefaultRateWindow is the trailing span used for the counts-per-second estimate
const DefaultRateWindow = 3 * time.Second

type rateSample struct {
	at    time.Time
	total uint64
}

// RateWindow estimates counts per second from cumulative totals over a
// sliding time window. A thin window keeps the previous estimate instead of
// dropping to zero.
type RateWindow struct {
	window  time.Duration
	samples []rateSample
	cps     float64
}

// NewRateWindow creates a rate estimator with the default window
func NewRateWindow() *RateWindow {
	return &RateWindow{window: DefaultRateWindow}
}

// NewRateWindowWithSpan creates a rate estimator with a custom window
func NewRateWindowWithSpan(window time.Duration) (*RateWindow, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &RateWindow{window: window}, nil
}

// Update records the cumulative total observed at now and returns the
// current estimate
func (r *RateWindow) Update(now time.Time, total uint64) float64 {
	r.samples = append(r.samples, rateSample{at: now, total: total})

	// Drop samples older than the window
	keep := 0
	for keep < len(r.samples) && now.Sub(r.samples[keep].at) > r.window {
		keep++
	}
	if keep > 0 {
		r.samples = append(r.samples[:0], r.samples[keep:]...)
	}

	if len(r.samples) < 2 {
		return r.cps
	}

	oldest := r.samples[0]
	newest := r.samples[len(r.samples)-1]
	dt := newest.at.Sub(oldest.at).Seconds()
	if dt > 0 {
		r.cps = float64(int64(newest.total)-int64(oldest.total)) / dt
	}
	return r.cps
}

// CPS returns the last estimate
func (r *RateWindow) CPS() float64 {
	return r.cps
}

// Len returns the number of samples inside the window
func (r *RateWindow) Len() int {
	return len(r.samples)
}

// Clear drops all samples and zeroes the estimate
func (r *RateWindow) Clear() {
	r.samples = r.samples[:0]
	r.cps = 0
}
