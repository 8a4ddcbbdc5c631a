package printer

import (
	"context"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialTransport prints to a serial-attached printer
type SerialTransport struct {
	device  string
	baud    int
	timeout time.Duration
	lock    deviceLock
}

// NewSerialTransport creates a serial transport. A zero baud uses 9600,
// the default for most thermal printers.
func NewSerialTransport(device string, baud int, writeTimeout time.Duration) *SerialTransport {
	if baud == 0 {
		baud = 9600
	}

	return &SerialTransport{
		device:  device,
		baud:    baud,
		timeout: writeTimeout,
		lock:    newDeviceLock(),
	}
}

// Open opens the serial port for one print request
func (t *SerialTransport) Open(ctx context.Context) (Connection, error) {
	if err := t.lock.acquire(ctx); err != nil {
		return nil, err
	}

	config := &serial.Config{
		Name: t.device,
		Baud: t.baud,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		t.lock.release()
		return nil, fmt.Errorf("failed to open serial port %s: %w", t.device, err)
	}

	return &streamConnection{
		w:       port,
		timeout: t.timeout,
		label:   "serial",
		release: t.lock.release,
	}, nil
}
