package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/herlein/gohama/pkg/spectrum"
)

func TestSqliteStore_SessionAndSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewSqliteStore(filepath.Join(t.TempDir(), "spectra.db"))
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, "1-2.3", map[string]any{"bin_factor": 16})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Expected a session ID")
	}

	counts := make([]uint32, spectrum.NumBins)
	counts[0] = 5
	counts[spectrum.NumBins-1] = 7

	taken := time.Unix(1700000000, 0)
	first := &spectrum.Snapshot{
		Spectrum:    counts,
		Total:       12,
		Elapsed:     1500 * time.Millisecond,
		CPS:         8,
		Temperature: math.NaN(),
		TakenAt:     taken,
	}
	second := *first
	second.Temperature = 21.5
	second.DeviceTime = 3.2
	second.TakenAt = taken.Add(time.Second)

	if err := store.StoreSnapshot(ctx, sessionID, first, 1.0); err != nil {
		t.Fatalf("Failed to store snapshot: %v", err)
	}
	if err := store.StoreSnapshot(ctx, sessionID, &second, 2.0); err != nil {
		t.Fatalf("Failed to store snapshot: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != sessionID {
		t.Fatalf("Expected session %s, got %+v", sessionID, sessions)
	}
	if sessions[0].DeviceID != "1-2.3" || sessions[0].Config == nil {
		t.Errorf("Unexpected session %+v", sessions[0])
	}

	snapshots, err := store.Snapshots(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snapshots))
	}

	got := snapshots[0]
	if got.DeltaT != 1.0 || got.Total != 12 || got.CPS != 8 {
		t.Errorf("Unexpected first snapshot %+v", got)
	}
	if !math.IsNaN(got.Temperature) {
		t.Errorf("Expected NaN temperature, got %v", got.Temperature)
	}
	if got.Elapsed != 1500*time.Millisecond {
		t.Errorf("Expected elapsed 1.5s, got %v", got.Elapsed)
	}
	if !got.TakenAt.Equal(taken) {
		t.Errorf("Expected taken at %v, got %v", taken, got.TakenAt)
	}
	if len(got.Spectrum) != spectrum.NumBins || got.Spectrum[0] != 5 || got.Spectrum[spectrum.NumBins-1] != 7 {
		t.Error("Counts did not survive storage")
	}

	if snapshots[1].Temperature != 21.5 || snapshots[1].DeviceTime != 3.2 {
		t.Errorf("Unexpected second snapshot telemetry %+v", snapshots[1])
	}
}

func TestSqliteStore_CloseIdempotent(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "spectra.db"))
	if _, err := store.CreateSession(context.Background(), "sim", nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}

func TestDecodeCountsRejectsCorruptBlob(t *testing.T) {
	if _, err := decodeCounts([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated blob")
	}
}
