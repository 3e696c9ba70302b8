package detector

import (
	"fmt"

	"github.com/google/gousb"
)

// ResetResult reports the outcome of resetting one detector
type ResetResult struct {
	Info Info
	Err  error
}

// ResetDevices issues a USB reset to every detector the selector picks. An
// empty selector resets all connected detectors.
func ResetDevices(usb *gousb.Context, selector DeviceSelector) ([]ResetResult, error) {
	usbDevices, err := openCandidates(usb)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, usbDev := range usbDevices {
			usbDev.Close()
		}
	}()

	if len(usbDevices) == 0 {
		return nil, ErrDeviceNotFound
	}

	infos := make([]Info, len(usbDevices))
	for i, usbDev := range usbDevices {
		infos[i] = describe(usbDev)
	}

	targets := make([]int, 0, len(infos))
	if selector == "" {
		for i := range infos {
			targets = append(targets, i)
		}
	} else {
		index, err := selector.Match(infos)
		if err != nil {
			return nil, fmt.Errorf("failed to select detector: %w", err)
		}
		targets = append(targets, index)
	}

	results := make([]ResetResult, 0, len(targets))
	for _, i := range targets {
		results = append(results, ResetResult{Info: infos[i], Err: usbDevices[i].Reset()})
	}
	return results, nil
}
