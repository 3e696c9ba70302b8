package detector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DeviceSelector specifies how to identify a detector
// Supported formats:
//   - ""         : The only connected detector; an error if there are several
//   - "serial"   : Match by serial number
//   - "bus:addr" : Match by USB bus and address (e.g., "1:10")
//   - "1-2.3"    : Match by port path (bus-port.port...)
//   - "#N"       : Use Nth device, 0-indexed (e.g., "#0", "#1")
type DeviceSelector string

var portPattern = regexp.MustCompile(`^\d+-\d+(\.\d+)*$`)

// Match returns the index of the single entry in infos the selector picks
func (s DeviceSelector) Match(infos []Info) (int, error) {
	sel := string(s)

	if len(infos) == 0 {
		return -1, ErrDeviceNotFound
	}

	// Empty selector - only unambiguous when one device is attached
	if sel == "" {
		if len(infos) > 1 {
			return -1, fmt.Errorf("%w: %d detectors connected; select one with -d", ErrAmbiguousDevice, len(infos))
		}
		return 0, nil
	}

	// Index selector: #0, #1, etc.
	if strings.HasPrefix(sel, "#") {
		index, err := strconv.Atoi(sel[1:])
		if err != nil {
			return -1, fmt.Errorf("%w: invalid device index %q", ErrInvalidSelector, sel)
		}
		if index < 0 || index >= len(infos) {
			return -1, fmt.Errorf("%w: index %d out of range (found %d devices)", ErrDeviceNotFound, index, len(infos))
		}
		return index, nil
	}

	// Bus:Address selector: 1:10, 2:5, etc.
	if strings.Contains(sel, ":") {
		bus, addr, err := parseBusAddr(sel)
		if err != nil {
			return -1, err
		}
		return matchOne(infos, func(i Info) bool {
			return i.Bus == bus && i.Address == addr
		}, fmt.Sprintf("at bus %d address %d", bus, addr))
	}

	// Port path selector: 1-2, 1-2.3, etc.
	if portPattern.MatchString(sel) {
		return matchOne(infos, func(i Info) bool {
			return i.Port() == sel
		}, fmt.Sprintf("on port %s", sel))
	}

	// Serial number selector
	return matchOne(infos, func(i Info) bool {
		return i.Serial == sel
	}, fmt.Sprintf("with serial %s", sel))
}

func parseBusAddr(sel string) (int, int, error) {
	parts := strings.SplitN(sel, ":", 2)
	bus, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid bus number %q", ErrInvalidSelector, parts[0])
	}
	addr, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid address number %q", ErrInvalidSelector, parts[1])
	}
	return bus, addr, nil
}

func matchOne(infos []Info, match func(Info) bool, what string) (int, error) {
	found := -1
	count := 0
	for i, info := range infos {
		if match(info) {
			if found < 0 {
				found = i
			}
			count++
		}
	}

	switch {
	case count == 0:
		return -1, fmt.Errorf("%w %s", ErrDeviceNotFound, what)
	case count > 1:
		return -1, fmt.Errorf("%w: %d devices found %s; use bus:addr or index format", ErrAmbiguousDevice, count, what)
	}
	return found, nil
}

// DeviceFlagUsage returns usage text for the -d flag
func DeviceFlagUsage() string {
	return `Device selector. Formats:
    ""        - The only connected detector
    "serial"  - Match by serial number
    "bus:addr"- Match by USB location (e.g., "1:10")
    "1-2.3"   - Match by port path
    "#N"      - Use Nth device, 0-indexed (e.g., "#0", "#1")`
}
