package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/gousb"

	"github.com/herlein/gohama/pkg/acquisition"
	"github.com/herlein/gohama/pkg/config"
	"github.com/herlein/gohama/pkg/detector"
	"github.com/herlein/gohama/pkg/recorder"
	"github.com/herlein/gohama/pkg/spectrum"
	"github.com/herlein/gohama/pkg/storage"
)

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	opener, deviceID, closeOpener := newOpener(cfg, logger)
	defer closeOpener()

	var recorderOptions []func(r *recorder.Recorder)
	if cfg.Storage.SQLitePath != "" {
		store := storage.NewSqliteStore(cfg.Storage.SQLitePath)
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close snapshot store", slog.String("error", err.Error()))
			}
		}()
		recorderOptions = append(recorderOptions, recorder.WithStore(store, deviceID))
	}

	engine, err := acquisition.New(opener,
		acquisition.WithLogger(logger),
		acquisition.WithConfig(cfg.Engine()),
		acquisition.WithRecorderOptions(recorderOptions...))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Stop()

	fmt.Printf("Detector: %s\n", deviceID)

	var snap spectrum.Snapshot
	switch {
	case *duration > 0:
		fmt.Printf("Acquiring for %v...\n", *duration)
		snap, err = engine.AcquireFor(ctx, *duration)
		if err != nil {
			return fmt.Errorf("acquisition interrupted: %w", err)
		}

	case cfg.Logging.BaseName != "":
		session, err := engine.StartLogging(cfg.Logging.BaseName,
			time.Duration(cfg.Logging.Interval), time.Duration(cfg.Logging.TotalTime))
		if err != nil {
			return fmt.Errorf("failed to start logging: %w", err)
		}
		fmt.Printf("Logging to %s every %v (Press Ctrl+C to stop)\n", session.Path, session.Interval)

		monitor(ctx, engine, true)
		snap = engine.Snapshot()
		engine.StopLogging()
		printLogFile(session.Path)

	default:
		engine.Start()
		fmt.Println("Acquiring... (Press Ctrl+C to stop)")
		monitor(ctx, engine, false)
		snap = engine.Snapshot()
	}

	printSummary(snap, engine.Status())

	if *output != "" {
		if err := spectrum.SaveText(*output, snap.Spectrum); err != nil {
			return fmt.Errorf("failed to save spectrum: %w", err)
		}
		fmt.Printf("Spectrum saved to %s\n", *output)
	}
	return nil
}

// newOpener returns the session opener for the configured detector
func newOpener(cfg *config.Config, logger *slog.Logger) (acquisition.SessionOpener, string, func()) {
	if cfg.Device.Simulate {
		seed := cfg.Device.SimSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return acquisition.SimulatorOpener(seed), "simulator", func() {}
	}

	usb := gousb.NewContext()
	opener := detector.NewOpener(usb,
		detector.WithLogger(logger),
		detector.WithSelector(detector.DeviceSelector(cfg.Device.Selector)),
		detector.WithResetCount(cfg.Device.ResetCount),
		detector.WithPowerCycle(cfg.Device.PowerCycle, cfg.Device.HubPort))

	deviceID := cfg.Device.Selector
	if deviceID == "" {
		deviceID = fmt.Sprintf("%04x:%04x", detector.VendorID, detector.ProductID)
	}

	open := acquisition.OpenerFunc(func(ctx context.Context) (acquisition.Session, error) {
		device, err := opener.Open(ctx)
		if err != nil {
			return nil, err
		}
		return device, nil
	})
	return open, deviceID, func() { usb.Close() }
}

// monitor prints a status line every statusInterval until ctx is canceled,
// or, when logging, until the logging session ends on its own
func monitor(ctx context.Context, engine *acquisition.Engine, logging bool) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n\nStopping...")
			return
		case <-ticker.C:
		}

		if contextDone(ctx) {
			return
		}

		snap := engine.Snapshot()
		status := engine.Status()
		line := fmt.Sprintf("\r%-10s elapsed %8.1fs  counts %12s  cps %10s  temp %s",
			status.State, snap.Elapsed.Seconds(), humanize.Comma(int64(snap.Total)),
			humanize.CommafWithDigits(snap.CPS, 1), formatTemperature(snap.Temperature))
		if logging {
			line += fmt.Sprintf("  Δt %.3fs", engine.Recorder().LastDeltaT())
		}
		fmt.Print(line)

		if logging && !engine.Recorder().Active() {
			fmt.Println()
			return
		}
	}
}

func formatTemperature(t float64) string {
	if math.IsNaN(t) {
		return "--"
	}
	return fmt.Sprintf("%.2f°C", t)
}

func printSummary(snap spectrum.Snapshot, status acquisition.Status) {
	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Elapsed:     %v\n", snap.Elapsed.Round(time.Millisecond))
	fmt.Printf("Counts:      %s\n", humanize.Comma(int64(snap.Total)))
	fmt.Printf("Rate:        %s cps\n", humanize.CommafWithDigits(snap.CPS, 1))
	fmt.Printf("Temperature: %s\n", formatTemperature(snap.Temperature))
	fmt.Printf("Device time: %.1fs\n", snap.DeviceTime)
	fmt.Printf("Frames:      %s merged, %d empty, %d failed\n",
		humanize.Comma(int64(status.Stats.FramesMerged)), status.Stats.FramesSkipped, status.Stats.DecodeFailures)
	fmt.Printf("Sessions:    %d opened, %d open failures, %d resyncs\n",
		status.Stats.SessionsOpened, status.Stats.OpenFailures, status.Stats.Resyncs)
	if status.LastErr != nil {
		fmt.Printf("Last error:  %v\n", status.LastErr)
	}
}

func printLogFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	fmt.Printf("Log file:    %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
}
