// hama-reset resets Hamamatsu detectors to recover from USB errors
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"

	"github.com/herlein/gohama/pkg/detector"
)

func main() {
	deviceSel := flag.String("d", "", detector.DeviceFlagUsage())
	powerCycle := flag.Bool("power-cycle", false, "Power cycle the hub port with uhubctl instead of a USB reset")
	hubPort := flag.String("hub-port", "", "uhubctl location:port (default: derived from the device path)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	usb := gousb.NewContext()
	defer usb.Close()

	if *powerCycle {
		if err := cycle(ctx, usb, detector.DeviceSelector(*deviceSel), *hubPort, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			usb.Close()
			os.Exit(1)
		}
		return
	}

	// Try multiple times to find devices
	for attempt := 0; attempt < 3; attempt++ {
		results, err := detector.ResetDevices(usb, detector.DeviceSelector(*deviceSel))
		if err != nil {
			fmt.Printf("Attempt %d: %v\n", attempt+1, err)
			if errors.Is(err, detector.ErrAmbiguousDevice) || errors.Is(err, detector.ErrInvalidSelector) {
				break
			}
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("Found %d device(s)\n", len(results))
		for i, r := range results {
			fmt.Printf("  Device %d: %s (port %s)\n", i, r.Info.Serial, r.Info.Port())
			if r.Err != nil {
				fmt.Printf("    Reset failed: %v\n", r.Err)
			} else {
				fmt.Printf("    Reset OK\n")
			}
		}
		return
	}

	fmt.Println("Failed to find/reset devices after 3 attempts")
	usb.Close()
	os.Exit(1)
}

func cycle(ctx context.Context, usb *gousb.Context, selector detector.DeviceSelector, hubPort string, logger *slog.Logger) error {
	var hp detector.HubPort
	if hubPort != "" {
		var err error
		if hp, err = detector.ParseHubPort(hubPort); err != nil {
			return err
		}
	} else {
		infos, err := detector.ListDevices(usb)
		if err != nil {
			return err
		}
		index, err := selector.Match(infos)
		if err != nil {
			return err
		}
		if hp, err = detector.HubPortFor(infos[index]); err != nil {
			return err
		}
	}

	cycler, err := detector.NewPowerCycler(logger)
	if err != nil {
		return err
	}
	if err := cycler.Cycle(ctx, hp); err != nil {
		return err
	}

	fmt.Printf("Power cycled %s\n", hp)
	return nil
}
