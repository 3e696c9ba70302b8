package detector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/herlein/gohama/pkg/frame"
)

// Info describes a connected detector
type Info struct {
	Bus          int
	Address      int
	Path         []int // Port numbers from the root hub
	Serial       string
	Manufacturer string
	Product      string
	Speed        gousb.Speed
}

// Port returns the Linux-style port location, e.g. "1-2.3"
func (i Info) Port() string {
	if len(i.Path) == 0 {
		return ""
	}
	parts := make([]string, len(i.Path))
	for n, p := range i.Path {
		parts[n] = strconv.Itoa(p)
	}
	return fmt.Sprintf("%d-%s", i.Bus, strings.Join(parts, "."))
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (Serial: %s, %d:%d, port %s)", i.Manufacturer, i.Product, i.Serial, i.Bus, i.Address, i.Port())
}

// Device is an open detector with its bulk IN endpoint claimed
type Device struct {
	Info

	usbDevice    *gousb.Device
	usbConfig    *gousb.Config
	usbInterface *gousb.Interface
	epIn         *gousb.InEndpoint
	packetSize   int
	buf          []byte
	mu           sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func describe(usbDev *gousb.Device) Info {
	manufacturer, _ := usbDev.Manufacturer()
	product, _ := usbDev.Product()
	serial, _ := usbDev.SerialNumber()

	desc := usbDev.Desc
	return Info{
		Bus:          desc.Bus,
		Address:      desc.Address,
		Path:         append([]int(nil), desc.Path...),
		Serial:       serial,
		Manufacturer: manufacturer,
		Product:      product,
		Speed:        desc.Speed,
	}
}

// openCandidates opens every connected detector without claiming it
func openCandidates(usb *gousb.Context) ([]*gousb.Device, error) {
	usbDevices, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	if err != nil && len(usbDevices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return usbDevices, nil
}

// ListDevices describes all connected detectors
func ListDevices(usb *gousb.Context) ([]Info, error) {
	usbDevices, err := openCandidates(usb)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(usbDevices))
	for _, usbDev := range usbDevices {
		infos = append(infos, describe(usbDev))
		usbDev.Close()
	}
	return infos, nil
}

// claim selects the configuration and interface and finds the bulk IN endpoint
func claim(usbDev *gousb.Device, info Info) (*Device, error) {
	usbDev.SetAutoDetach(true)

	config, err := usbDev.Config(ConfigNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to set configuration: %w", err)
	}

	iface, err := config.Interface(InterfaceNumber, AltSetting)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	var inDesc *gousb.EndpointDesc
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn {
			ep := ep
			inDesc = &ep
			break
		}
	}
	if inDesc == nil {
		iface.Close()
		config.Close()
		return nil, ErrNoInEndpoint
	}

	epIn, err := iface.InEndpoint(inDesc.Number)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get IN endpoint: %w", err)
	}

	device := &Device{
		Info:         info,
		usbDevice:    usbDev,
		usbConfig:    config,
		usbInterface: iface,
		epIn:         epIn,
		packetSize:   inDesc.MaxPacketSize,
		buf:          make([]byte, inDesc.MaxPacketSize),
	}

	device.drainReceiveBuffer()

	return device, nil
}

// MaxPacketSize returns the IN endpoint's packet size
func (d *Device) MaxPacketSize() int {
	return d.packetSize
}

// ReadPacket reads one packet from the IN endpoint. A read that returns
// nothing within timeout is reported as frame.ErrReadTimeout.
func (d *Device) ReadPacket(ctx context.Context, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	readCtx, cancel := context.WithTimeout(ctx, timeout)
	n, err := d.epIn.ReadContext(readCtx, d.buf)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Context was canceled or timed out, this is expected
		if readCtx.Err() != nil ||
			errors.Is(err, gousb.TransferTimedOut) ||
			errors.Is(err, gousb.ErrorTimeout) {
			return nil, fmt.Errorf("%w: %v", frame.ErrReadTimeout, err)
		}
		return nil, fmt.Errorf("failed to read from IN endpoint: %w", err)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: empty packet", frame.ErrReadTimeout)
	}

	packet := make([]byte, n)
	copy(packet, d.buf[:n])
	return packet, nil
}

// drainReceiveBuffer reads and discards any stale data left from a previous session
func (d *Device) drainReceiveBuffer() {
	for i := 0; i < drainReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		n, err := d.epIn.ReadContext(ctx, d.buf)
		cancel()
		if err != nil || n == 0 {
			break
		}
	}
}

// Close releases the interface, the configuration and the device. It is
// safe to call more than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.usbInterface != nil {
			d.usbInterface.Close()
		}
		if d.usbConfig != nil {
			if err := d.usbConfig.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to release configuration: %w", err))
			}
		}
		if d.usbDevice != nil {
			if err := d.usbDevice.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close device: %w", err))
			}
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}
