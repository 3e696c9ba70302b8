package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if time.Duration(cfg.Logging.Interval) != 10*time.Second {
		t.Errorf("Expected 10s logging interval, got %v", time.Duration(cfg.Logging.Interval))
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hama.yaml")
	data := `
settings:
  log_level: debug
device:
  selector: "1-2.3"
  power_cycle: true
  hub_port: "1-2:3"
acquisition:
  poll_interval: 50ms
  bin_factor: 32
logging:
  base_name: runs/spectrum.csv
  interval: 2s
  total_time: 1h
storage:
  sqlite_path: runs/spectra.db
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if level, _ := cfg.Settings.Level(); level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", level)
	}
	if cfg.Device.Selector != "1-2.3" || !cfg.Device.PowerCycle || cfg.Device.HubPort != "1-2:3" {
		t.Errorf("Unexpected device section %+v", cfg.Device)
	}
	if cfg.Device.ResetCount != 2 {
		t.Errorf("Expected default reset count 2, got %d", cfg.Device.ResetCount)
	}

	engine := cfg.Engine()
	if engine.PollInterval != 50*time.Millisecond {
		t.Errorf("Expected 50ms poll interval, got %v", engine.PollInterval)
	}
	if engine.BinFactor != 32 {
		t.Errorf("Expected bin factor 32, got %d", engine.BinFactor)
	}
	if engine.ReconnectBackoff != 2*time.Second {
		t.Errorf("Expected default backoff 2s, got %v", engine.ReconnectBackoff)
	}

	if time.Duration(cfg.Logging.TotalTime) != time.Hour {
		t.Errorf("Expected total time 1h, got %v", time.Duration(cfg.Logging.TotalTime))
	}
	if cfg.Storage.SQLitePath != "runs/spectra.db" {
		t.Errorf("Unexpected storage path %s", cfg.Storage.SQLitePath)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad duration", "acquisition:\n  poll_interval: soon\n", "failed to parse"},
		{"small bin factor", "acquisition:\n  bin_factor: 4\n", "bin factor"},
		{"bad level", "settings:\n  log_level: loud\n", "unknown level"},
		{"bad hub port", "device:\n  hub_port: nowhere\n", "hub_port"},
		{"zero interval", "logging:\n  interval: 0s\n", "logging.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hama.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hama.yaml")

	cfg := Default()
	cfg.Acquisition.ReadTimeout = Duration(250 * time.Millisecond)
	cfg.Logging.BaseName = "spectrum"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !strings.Contains(string(data), "read_timeout: 250ms") {
		t.Errorf("Expected durations written as strings, got:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Acquisition.ReadTimeout != cfg.Acquisition.ReadTimeout || loaded.Logging.BaseName != "spectrum" {
		t.Errorf("Loaded config differs: %+v", loaded)
	}
}
