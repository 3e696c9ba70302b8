// hama-list: List all connected Hamamatsu scintillation detectors
//
// This tool enumerates all detectors connected to the system and displays
// their serial numbers and USB locations.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/herlein/gohama/pkg/detector"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (show additional device details)")
	flag.Parse()

	// Create USB context
	context := gousb.NewContext()
	defer context.Close()

	devices, err := detector.ListDevices(context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Println("No detectors found")
		os.Exit(0)
	}

	fmt.Printf("Found %d detector(s):\n", len(devices))
	fmt.Println()

	for i, device := range devices {
		if *verbose {
			fmt.Printf("Device #%d:\n", i)
			fmt.Printf("  Serial:       %s\n", device.Serial)
			fmt.Printf("  Bus:Address:  %d:%d\n", device.Bus, device.Address)
			fmt.Printf("  Port:         %s\n", device.Port())
			fmt.Printf("  Manufacturer: %s\n", device.Manufacturer)
			fmt.Printf("  Product:      %s\n", device.Product)
			fmt.Printf("  Speed:        %s\n", device.Speed)
			if hp, err := detector.HubPortFor(device); err == nil {
				fmt.Printf("  Hub port:     %s\n", hp)
			}
			fmt.Println()
		} else {
			fmt.Printf("  #%d  %s  %d:%d  %s\n", i, device.Serial, device.Bus, device.Address, device.Port())
		}
	}

	if !*verbose {
		fmt.Println()
		fmt.Println("Use -d flag with other tools to select device:")
		fmt.Println("  -d \"#0\"      Select by index")
		fmt.Println("  -d \"1:10\"    Select by bus:address")
		fmt.Println("  -d \"1-2.3\"   Select by port path")
		fmt.Println("  -d \"A1B2\"    Select by serial (if unique)")
	}
}
