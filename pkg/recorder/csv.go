package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/herlein/gohama/pkg/spectrum"
)

// DefaultExt is used when the base name carries no extension
const DefaultExt = ".csv"

const timestampLayout = "20060102_150405"

// FileName builds "<root>_YYYYmmdd_HHMMSS<ext>" from a base like "runs/spectrum.csv"
func FileName(base string, t time.Time) string {
	ext := filepath.Ext(base)
	root := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("%s_%s%s", root, t.Format(timestampLayout), ext)
}

// header returns "delta_t,ch0,...,ch4095"
func header() []byte {
	b := make([]byte, 0, 8+spectrum.NumBins*7)
	b = append(b, "delta_t"...)
	for i := 0; i < spectrum.NumBins; i++ {
		b = append(b, ",ch"...)
		b = strconv.AppendInt(b, int64(i), 10)
	}
	return append(b, '\n')
}

// createLog creates the log file and writes its header
func createLog(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, header(), 0644); err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	return nil
}

// appendRow appends one snapshot row. The file is opened per row so that
// every completed row is on disk if the process dies.
func appendRow(path string, deltaT float64, counts []uint32) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w := bufio.NewWriter(file)
	buf := strconv.AppendFloat(make([]byte, 0, 32), deltaT, 'f', 3, 64)
	if _, err := w.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to write row: %w", err)
	}
	for _, c := range counts {
		buf = append(buf[:0], ',')
		buf = strconv.AppendUint(buf, uint64(c), 10)
		if _, err := w.Write(buf); err != nil {
			file.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := w.WriteByte('\n'); err != nil {
		file.Close()
		return fmt.Errorf("failed to write row: %w", err)
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush row: %w", err)
	}
	return file.Close()
}
