// Package printer dispatches print requests to locally attached receipt
// printers and reports each request's result exactly once
package printer

import (
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// Printer is a printer-like USB device seen during detection
type Printer struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	VID          uint16 `json:"vid"`
	PID          uint16 `json:"pid"`
	Bus          int    `json:"bus"`
	Address      int    `json:"address"`
}

// Detector lists attached printers
type Detector interface {
	Detect() ([]*Printer, error)
}

// DetectorFunc adapts a function to Detector
type DetectorFunc func() ([]*Printer, error)

// Detect calls f
func (f DetectorFunc) Detect() ([]*Printer, error) {
	return f()
}

// USBDetector finds printer-like USB devices using libusb
type USBDetector struct{}

// Detect enumerates devices exposing a printer or vendor-specific
// interface with a bulk OUT endpoint, the same test the USB transport uses
func (USBDetector) Detect() ([]*Printer, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := findPrinterEndpoint(desc)
		return ok
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	printers := make([]*Printer, 0, len(devices))
	for _, dev := range devices {
		desc := dev.Desc

		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %04X:%04X", uint16(desc.Vendor), uint16(desc.Product))
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%04X:%04X)",
				manufacturer, product, uint16(desc.Vendor), uint16(desc.Product))
		}

		printers = append(printers, &Printer{
			ID:           printerID(uint16(desc.Vendor), uint16(desc.Product), desc.Bus, desc.Address),
			Description:  description,
			Manufacturer: manufacturer,
			Product:      product,
			VID:          uint16(desc.Vendor),
			PID:          uint16(desc.Product),
			Bus:          desc.Bus,
			Address:      desc.Address,
		})
		dev.Close()
	}

	sort.Slice(printers, func(i, j int) bool {
		return printers[i].ID < printers[j].ID
	})

	return printers, nil
}

// printerID identifies a device by model and port, so two identical
// printers on different ports stay distinct
func printerID(vid, pid uint16, bus, address int) string {
	return fmt.Sprintf("usb:%04X:%04X@%d.%d", vid, pid, bus, address)
}
