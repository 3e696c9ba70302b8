package spectrum

import "fmt"

// DefaultBinFactor maps 16-bit amplitudes onto exactly NumBins bins
const DefaultBinFactor uint16 = 16

// Bin returns the histogram bin for a raw amplitude
func Bin(amplitude, factor uint16) int {
	return int(amplitude / factor)
}

// ValidateFactor checks that every 16-bit amplitude lands inside the spectrum
func ValidateFactor(factor uint16) error {
	if factor == 0 {
		return fmt.Errorf("%w: factor must be non-zero", ErrInvalidBinFactor)
	}
	if Bin(0xFFFF, factor) >= NumBins {
		return fmt.Errorf("%w: factor %d maps amplitude 65535 to bin %d (max %d)",
			ErrInvalidBinFactor, factor, Bin(0xFFFF, factor), NumBins-1)
	}
	return nil
}

// Fill bins the given amplitudes into h, which is cleared first.
// Callers pass only the valid events of a frame.
func Fill(h *Histogram, amplitudes []uint16, factor uint16) {
	*h = Histogram{}
	for _, a := range amplitudes {
		h[Bin(a, factor)]++
	}
}
