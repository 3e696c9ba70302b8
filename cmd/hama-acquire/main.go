// hama-acquire accumulates an energy spectrum from a Hamamatsu scintillation detector
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herlein/gohama/pkg/config"
	"github.com/herlein/gohama/pkg/detector"
)

var (
	configPath = flag.String("c", "", "Path to a YAML configuration file")
	deviceSel  = flag.String("d", "", detector.DeviceFlagUsage())
	simulate   = flag.Bool("sim", false, "Use the built-in detector simulator")
	duration   = flag.Duration("duration", 0, "Acquire for this long, then print and save the spectrum (0 = until Ctrl+C)")
	output     = flag.String("o", "", "Save the final spectrum to this file, one count per line")
	logBase    = flag.String("log", "", "Log snapshots to <base>_YYYYmmdd_HHMMSS.csv")
	interval   = flag.Duration("interval", 0, "Snapshot logging interval (default from config, 10s)")
	totalTime  = flag.Duration("total", 0, "Stop logging after this long (0 = until Ctrl+C)")
	dbPath     = flag.String("db", "", "Also store logged snapshots in this SQLite database")
	verbose    = flag.Bool("v", false, "Verbose output (debug logging)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Spectrum acquisition for Hamamatsu scintillation detectors\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -duration 60s -o spectrum.txt       # One minute, save counts\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -log runs/night -interval 10s     # Log snapshots until Ctrl+C\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -log run -total 1h -db spectra.db # One hour, CSV and SQLite\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -sim -duration 5s                  # Try it without hardware\n", os.Args[0])
	}
	flag.Parse()

	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()), slog.String("path", *configPath))
		os.Exit(1)
	}

	level, _ := cfg.Settings.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flags given on the command line
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.Device.Selector = *deviceSel
		case "sim":
			cfg.Device.Simulate = *simulate
		case "log":
			cfg.Logging.BaseName = *logBase
		case "interval":
			cfg.Logging.Interval = config.Duration(*interval)
		case "total":
			cfg.Logging.TotalTime = config.Duration(*totalTime)
		case "db":
			cfg.Storage.SQLitePath = *dbPath
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// contextDone reports whether ctx has been canceled
func contextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// statusInterval is how often the live display refreshes
const statusInterval = time.Second
