// Package spectrum accumulates binned detector events into a cumulative
// energy spectrum and estimates the live event rate.
package spectrum

// NumBins is the number of channels in a spectrum
const NumBins = 4096

// Histogram holds per-bin event counts for a single frame
type Histogram [NumBins]uint32

// Total returns the number of events in the histogram
func (h *Histogram) Total() uint64 {
	var sum uint64
	for _, c := range h {
		sum += uint64(c)
	}
	return sum
}

// Spectrum is a cumulative histogram. It is not safe for concurrent use;
// the owner serializes access.
type Spectrum struct {
	bins  [NumBins]uint32
	total uint64
}

// Merge adds a per-frame histogram into the spectrum
func (s *Spectrum) Merge(h *Histogram) {
	for i, c := range h {
		if c == 0 {
			continue
		}
		s.bins[i] += c
		s.total += uint64(c)
	}
}

// Reset zeroes every bin
func (s *Spectrum) Reset() {
	s.bins = [NumBins]uint32{}
	s.total = 0
}

// Total returns the sum of all bins since the last reset
func (s *Spectrum) Total() uint64 {
	return s.total
}

// Bin returns the count in bin i
func (s *Spectrum) Bin(i int) uint32 {
	return s.bins[i]
}

// Counts returns a copy of the bins
func (s *Spectrum) Counts() []uint32 {
	out := make([]uint32, NumBins)
	copy(out, s.bins[:])
	return out
}
