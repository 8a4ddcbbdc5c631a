package printer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USBTransport prints to the first printer-like USB device, or to a
// specific VID:PID when one is configured
type USBTransport struct {
	vid     uint16
	pid     uint16
	timeout time.Duration
	lock    deviceLock
}

// NewUSBTransport creates a USB transport. A zero vid matches any device
// exposing a printer or vendor-specific interface with a bulk OUT endpoint.
func NewUSBTransport(vid, pid uint16, writeTimeout time.Duration) *USBTransport {
	return &USBTransport{
		vid:     vid,
		pid:     pid,
		timeout: writeTimeout,
		lock:    newDeviceLock(),
	}
}

// printerEndpoint locates the bulk OUT endpoint of a printer interface
type printerEndpoint struct {
	config    int
	iface     int
	alternate int
	endpoint  int
}

// Open claims the printer interface for one print request. The returned
// connection holds the device until it is closed.
func (t *USBTransport) Open(ctx context.Context) (Connection, error) {
	if err := t.lock.acquire(ctx); err != nil {
		return nil, err
	}

	conn, err := t.open()
	if err != nil {
		t.lock.release()
		return nil, err
	}
	conn.release = t.lock.release
	return conn, nil
}

func (t *USBTransport) open() (*USBConnection, error) {
	usbCtx := gousb.NewContext()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if t.vid != 0 && (uint16(desc.Vendor) != t.vid || uint16(desc.Product) != t.pid) {
			return false
		}
		_, ok := findPrinterEndpoint(desc)
		return ok
	})
	// OpenDevices can return usable devices alongside an error for others
	if len(devices) == 0 {
		usbCtx.Close()
		if err != nil {
			return nil, fmt.Errorf("USB manager not available: %w", err)
		}
		return nil, errors.New("No USB printer detected")
	}

	dev := devices[0]
	for _, other := range devices[1:] {
		other.Close()
	}

	fail := func(msg string, cause error) (*USBConnection, error) {
		dev.Close()
		usbCtx.Close()
		if cause != nil {
			return nil, fmt.Errorf("%s: %w", msg, cause)
		}
		return nil, errors.New(msg)
	}

	ep, ok := findPrinterEndpoint(dev.Desc)
	if !ok {
		return fail("Printer interface/endpoints not found", nil)
	}

	// Printers bound to usblp need the kernel driver detached first.
	// Not every platform supports it, so a failure here is not fatal.
	_ = dev.SetAutoDetach(true)

	cfg, err := dev.Config(ep.config)
	if err != nil {
		return fail("Failed to open USB device", err)
	}

	iface, err := cfg.Interface(ep.iface, ep.alternate)
	if err != nil {
		cfg.Close()
		return fail("Failed to claim interface", err)
	}

	out, err := iface.OutEndpoint(ep.endpoint)
	if err != nil {
		iface.Close()
		cfg.Close()
		return fail("Printer interface/endpoints not found", err)
	}

	return &USBConnection{
		usbCtx:   usbCtx,
		device:   dev,
		config:   cfg,
		iface:    iface,
		endpoint: out,
		timeout:  t.timeout,
	}, nil
}

// findPrinterEndpoint picks the first interface of class printer or
// vendor-specific that has a bulk OUT endpoint. Configs and interfaces are
// visited in ascending order so the choice is stable.
func findPrinterEndpoint(desc *gousb.DeviceDesc) (printerEndpoint, bool) {
	cfgNums := make([]int, 0, len(desc.Configs))
	for num := range desc.Configs {
		cfgNums = append(cfgNums, num)
	}
	sort.Ints(cfgNums)

	for _, num := range cfgNums {
		cfgDesc := desc.Configs[num]
		for _, ifaceDesc := range cfgDesc.Interfaces {
			for _, alt := range ifaceDesc.AltSettings {
				if alt.Class != gousb.ClassPrinter && alt.Class != gousb.ClassVendorSpec {
					continue
				}
				for _, epDesc := range alt.Endpoints {
					if epDesc.Direction == gousb.EndpointDirectionOut && epDesc.TransferType == gousb.TransferTypeBulk {
						return printerEndpoint{
							config:    cfgDesc.Number,
							iface:     ifaceDesc.Number,
							alternate: alt.Alternate,
							endpoint:  epDesc.Number,
						}, true
					}
				}
			}
		}
	}

	return printerEndpoint{}, false
}

// USBConnection is one claimed printer interface
type USBConnection struct {
	usbCtx   *gousb.Context
	device   *gousb.Device
	config   *gousb.Config
	iface    *gousb.Interface
	endpoint *gousb.OutEndpoint
	timeout  time.Duration
	release  func()

	closeOnce sync.Once
}

// Write performs the bulk transfer on its own goroutine
func (c *USBConnection) Write(data []byte, done func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		n, err := c.endpoint.WriteContext(ctx, data)
		if err == nil && n < len(data) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
		}
		if err != nil {
			done(fmt.Errorf("bulkTransfer data failed: %w", err))
			return
		}
		done(nil)
	}()
}

// Close releases the interface, the device and the libusb context
func (c *USBConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.iface != nil {
			c.iface.Close()
		}
		if c.config != nil {
			err = c.config.Close()
		}
		if c.device != nil {
			if derr := c.device.Close(); err == nil {
				err = derr
			}
		}
		if c.usbCtx != nil {
			c.usbCtx.Close()
		}
		if c.release != nil {
			c.release()
		}
	})
	return err
}
