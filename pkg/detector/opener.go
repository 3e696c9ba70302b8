package detector

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/gousb"
)

// WithLogger sets the logger for the open sequence
func WithLogger(logger *slog.Logger) func(o *Opener) {
	return func(o *Opener) {
		o.logger = logger
	}
}

// WithSelector picks which detector to open
func WithSelector(selector DeviceSelector) func(o *Opener) {
	return func(o *Opener) {
		o.selector = selector
	}
}

// WithResetCount sets how many USB resets are issued before claiming
func WithResetCount(n int) func(o *Opener) {
	return func(o *Opener) {
		o.resetCount = n
	}
}

// WithPowerCycle enables power cycling the detector's hub port on every
// open. hubPort overrides the location derived from the device path.
func WithPowerCycle(enabled bool, hubPort string) func(o *Opener) {
	return func(o *Opener) {
		o.powerCycle = enabled
		o.hubPort = hubPort
	}
}

// Opener runs the detector open sequence. Each call to Open yields a fresh
// session; the engine calls it again after every failure.
type Opener struct {
	usb        *gousb.Context
	selector   DeviceSelector
	resetCount int
	powerCycle bool
	hubPort    string
	cycler     *PowerCycler
	logger     *slog.Logger
}

// NewOpener creates an opener using usb for enumeration
func NewOpener(usb *gousb.Context, options ...func(o *Opener)) *Opener {
	o := Opener{
		usb:        usb,
		resetCount: DefaultResetCount,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&o)
	}

	if o.powerCycle {
		cycler, err := NewPowerCycler(o.logger)
		if err != nil {
			o.logger.Warn("power cycling disabled", slog.String("error", err.Error()))
		}
		o.cycler = cycler
	}

	return &o
}

// Open selects, prepares and claims the detector
func (o *Opener) Open(ctx context.Context) (*Device, error) {
	usbDev, info, err := o.selectDevice()
	if err != nil {
		return nil, err
	}

	if o.cycler != nil {
		usbDev.Close()

		hp, err := o.hubPortFor(info)
		if err != nil {
			return nil, err
		}
		if err := o.cycler.Cycle(ctx, hp); err != nil {
			return nil, err
		}

		// The device re-enumerates with a new address but the same port
		usbDev, info, err = o.reselect(info)
		if err != nil {
			return nil, err
		}
	} else if err := sleep(ctx, settleDelay); err != nil {
		usbDev.Close()
		return nil, err
	}

	for i := 0; i < o.resetCount; i++ {
		if err := usbDev.Reset(); err != nil {
			o.logger.Warn("device reset failed", slog.Int("attempt", i+1), slog.String("error", err.Error()))
		}
	}

	device, err := claim(usbDev, info)
	if err != nil {
		usbDev.Close()
		return nil, err
	}

	o.logger.Info("detector connected",
		slog.String("device", info.String()),
		slog.Int("packet_size", device.MaxPacketSize()))

	return device, nil
}

func (o *Opener) hubPortFor(info Info) (HubPort, error) {
	if o.hubPort != "" {
		return ParseHubPort(o.hubPort)
	}
	return HubPortFor(info)
}

func (o *Opener) selectDevice() (*gousb.Device, Info, error) {
	return o.pick(o.selector)
}

func (o *Opener) reselect(previous Info) (*gousb.Device, Info, error) {
	if port := previous.Port(); port != "" {
		return o.pick(DeviceSelector(port))
	}
	return o.pick(o.selector)
}

// pick opens all candidates and keeps the one selector matches
func (o *Opener) pick(selector DeviceSelector) (*gousb.Device, Info, error) {
	usbDevices, err := openCandidates(o.usb)
	if err != nil {
		return nil, Info{}, err
	}

	infos := make([]Info, len(usbDevices))
	for i, usbDev := range usbDevices {
		infos[i] = describe(usbDev)
	}

	index, err := selector.Match(infos)

	// Close all except the selected one
	for i, usbDev := range usbDevices {
		if i != index {
			usbDev.Close()
		}
	}

	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to select detector: %w", err)
	}
	return usbDevices[index], infos[index], nil
}
