package spectrum

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestBin_DefaultFactorStaysInRange(t *testing.T) {
	for a := 0; a <= math.MaxUint16; a++ {
		b := Bin(uint16(a), DefaultBinFactor)
		if b < 0 || b >= NumBins {
			t.Fatalf("Bin(%d, 16) = %d, outside [0, %d]", a, b, NumBins-1)
		}
	}
	if got := Bin(math.MaxUint16, DefaultBinFactor); got != NumBins-1 {
		t.Errorf("Expected max amplitude in bin %d, got %d", NumBins-1, got)
	}
}

func TestValidateFactor(t *testing.T) {
	tests := []struct {
		factor uint16
		ok     bool
	}{
		{0, false},
		{1, false},
		{15, false},
		{16, true},
		{32, true},
		{math.MaxUint16, true},
	}

	for _, tt := range tests {
		err := ValidateFactor(tt.factor)
		if tt.ok && err != nil {
			t.Errorf("factor %d: unexpected error %v", tt.factor, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidBinFactor) {
			t.Errorf("factor %d: expected ErrInvalidBinFactor, got %v", tt.factor, err)
		}
	}
}

func TestFill_ClearsPreviousCounts(t *testing.T) {
	var h Histogram
	Fill(&h, []uint16{0, 15, 16, 65535}, DefaultBinFactor)

	if h[0] != 2 || h[1] != 1 || h[NumBins-1] != 1 {
		t.Fatalf("Unexpected histogram: bin0=%d bin1=%d bin4095=%d", h[0], h[1], h[NumBins-1])
	}

	Fill(&h, []uint16{32}, DefaultBinFactor)
	if h.Total() != 1 || h[2] != 1 {
		t.Errorf("Expected single count in bin 2 after refill, got total=%d bin2=%d", h.Total(), h[2])
	}
}

func TestSpectrum_MonotonicUntilReset(t *testing.T) {
	var s Spectrum
	var h Histogram
	prev := s.Counts()

	for i := 0; i < 10; i++ {
		amps := make([]uint16, 100)
		for j := range amps {
			amps[j] = uint16((i*7919 + j*104729) % 65536)
		}
		Fill(&h, amps, DefaultBinFactor)
		s.Merge(&h)

		cur := s.Counts()
		for b := range cur {
			if cur[b] < prev[b] {
				t.Fatalf("Bin %d decreased from %d to %d", b, prev[b], cur[b])
			}
		}
		prev = cur
	}

	if s.Total() != 1000 {
		t.Errorf("Expected total 1000, got %d", s.Total())
	}
	for _, b := range []int{0, 17, NumBins - 1} {
		if s.Bin(b) != prev[b] {
			t.Errorf("Expected Bin(%d) = %d, got %d", b, prev[b], s.Bin(b))
		}
	}

	s.Reset()
	if s.Total() != 0 {
		t.Errorf("Expected total 0 after reset, got %d", s.Total())
	}
	if s.Bin(17) != 0 {
		t.Errorf("Expected Bin(17) = 0 after reset, got %d", s.Bin(17))
	}
	for b, c := range s.Counts() {
		if c != 0 {
			t.Fatalf("Bin %d = %d after reset", b, c)
		}
	}
}

func TestRateWindow_PrunesAndEstimates(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := NewRateWindow()

	samples := []struct {
		sec   int
		total uint64
	}{
		{0, 0},
		{1, 100},
		{2, 250},
		{4, 250},
	}

	var cps float64
	for _, s := range samples {
		cps = r.Update(base.Add(time.Duration(s.sec)*time.Second), s.total)
	}

	if r.Len() != 3 {
		t.Errorf("Expected 3 samples inside the window, got %d", r.Len())
	}
	if math.Abs(cps-50.0) > 1e-9 {
		t.Errorf("Expected CPS 50.0, got %f", cps)
	}
}

func TestRateWindow_KeepsPreviousWhenThin(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := NewRateWindow()

	r.Update(base, 0)
	if got := r.Update(base.Add(time.Second), 40); got != 40 {
		t.Fatalf("Expected CPS 40, got %f", got)
	}

	// A long gap leaves a single sample; the estimate must not reset
	if got := r.Update(base.Add(10*time.Second), 40); got != 40 {
		t.Errorf("Expected CPS to stay 40 on a thin window, got %f", got)
	}

	// Identical timestamps give no positive span
	if got := r.Update(base.Add(10*time.Second), 90); got != 40 {
		t.Errorf("Expected CPS to stay 40 with zero span, got %f", got)
	}

	r.Clear()
	if r.CPS() != 0 || r.Len() != 0 {
		t.Errorf("Expected cleared window, got cps=%f len=%d", r.CPS(), r.Len())
	}
}

func TestNewRateWindowWithSpan(t *testing.T) {
	if _, err := NewRateWindowWithSpan(0); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}
	if _, err := NewRateWindowWithSpan(time.Second); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestSaveText_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "spectrum.txt")

	counts := make([]uint32, NumBins)
	counts[0] = 7
	counts[100] = 4294967295
	counts[NumBins-1] = 1

	if err := SaveText(path, counts); err != nil {
		t.Fatalf("SaveText failed: %v", err)
	}

	loaded, err := LoadText(path)
	if err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	if len(loaded) != NumBins {
		t.Fatalf("Expected %d rows, got %d", NumBins, len(loaded))
	}
	for i := range counts {
		if loaded[i] != counts[i] {
			t.Fatalf("Row %d: expected %d, got %d", i, counts[i], loaded[i])
		}
	}
}
