package spectrum

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Snapshot is a consistent copy of the accumulated state
type Snapshot struct {
	Spectrum    []uint32      // Cumulative counts, NumBins entries
	Total       uint64        // Sum of Spectrum
	Elapsed     time.Duration // Time since the last reset or start
	CPS         float64       // Counts per second over the rate window
	Temperature float64       // Detector temperature in °C, NaN before the first frame
	DeviceTime  float64       // Device clock in seconds
	TakenAt     time.Time
}

// SaveText writes counts as a plain table, one bin per line
func SaveText(path string, counts []uint32) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create spectrum file: %w", err)
	}

	w := bufio.NewWriter(file)
	buf := make([]byte, 0, 16)
	for _, c := range counts {
		buf = strconv.AppendUint(buf[:0], uint64(c), 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			file.Close()
			return fmt.Errorf("failed to write spectrum: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write spectrum: %w", err)
	}
	return file.Close()
}

// LoadText reads a table written by SaveText
func LoadText(path string) ([]uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer file.Close()

	counts := make([]uint32, 0, NumBins)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		v, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		counts = append(counts, uint32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectrum file: %w", err)
	}
	return counts, nil
}
