package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport opens connections to a printer. Every print request gets its
// own connection; implementations serialize access at the device level.
type Transport interface {
	Open(ctx context.Context) (Connection, error)
}

// Connection is a single-use handle to an open printer
type Connection interface {
	// Write transfers data and calls done exactly once, after the transfer
	// finished or failed. A nil error means the bytes were accepted.
	Write(data []byte, done func(error))
	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Transport kinds
const (
	KindUSB     = "usb"
	KindSerial  = "serial"
	KindNetwork = "network"
)

// Options selects and tunes a transport
type Options struct {
	Kind         string
	VendorID     uint16
	ProductID    uint16
	SerialDevice string
	Baud         int
	Host         string
	Port         int
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	Logger       *zap.Logger
}

// NewTransport builds the transport for opts.Kind. A USB transport with a
// serial device configured falls back to that port when no USB printer can
// be opened, which is how USB-serial printers show up on macOS.
func NewTransport(opts Options) (Transport, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}

	switch opts.Kind {
	case KindUSB, "":
		usb := NewUSBTransport(opts.VendorID, opts.ProductID, opts.WriteTimeout)
		if opts.SerialDevice == "" {
			return usb, nil
		}
		serial := NewSerialTransport(opts.SerialDevice, opts.Baud, opts.WriteTimeout)
		return &fallbackTransport{
			primary:  usb,
			fallback: serial,
			log:      opts.Logger,
		}, nil
	case KindSerial:
		if opts.SerialDevice == "" {
			return nil, errors.New("serial transport requires a device path")
		}
		return NewSerialTransport(opts.SerialDevice, opts.Baud, opts.WriteTimeout), nil
	case KindNetwork:
		if opts.Host == "" {
			return nil, errors.New("network transport requires a host")
		}
		return NewNetworkTransport(opts.Host, opts.Port, opts.DialTimeout, opts.WriteTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", opts.Kind)
	}
}

// fallbackTransport tries primary first and fallback when primary cannot open
type fallbackTransport struct {
	primary  Transport
	fallback Transport
	log      *zap.Logger
}

func (t *fallbackTransport) Open(ctx context.Context) (Connection, error) {
	conn, err := t.primary.Open(ctx)
	if err == nil {
		return conn, nil
	}
	t.log.Debug("primary transport unavailable, trying fallback", zap.Error(err))

	conn, fbErr := t.fallback.Open(ctx)
	if fbErr != nil {
		// The primary failure is the more useful diagnostic
		return nil, err
	}
	return conn, nil
}

// deviceLock admits one open connection per device at a time
type deviceLock chan struct{}

func newDeviceLock() deviceLock {
	return make(deviceLock, 1)
}

func (l deviceLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("device busy: %w", ctx.Err())
	}
}

func (l deviceLock) release() {
	<-l
}

// streamConnection adapts a blocking io.WriteCloser to the Connection
// contract. Used by the serial and network transports.
type streamConnection struct {
	w         io.WriteCloser
	timeout   time.Duration
	label     string
	closeOnce sync.Once
	closeErr  error
	release   func()
}

func (c *streamConnection) Write(data []byte, done func(error)) {
	go func() {
		result := make(chan error, 1)
		go func() {
			n, err := c.w.Write(data)
			if err == nil && n < len(data) {
				err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
			}
			result <- err
		}()

		timer := time.NewTimer(c.timeout)
		defer timer.Stop()

		select {
		case err := <-result:
			if err != nil {
				done(fmt.Errorf("%s write failed: %w", c.label, err))
				return
			}
			done(nil)
		case <-timer.C:
			// Closing unblocks the pending write
			c.Close()
			done(fmt.Errorf("%s write timed out after %s", c.label, c.timeout))
		}
	}()
}

func (c *streamConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.w.Close()
		if c.release != nil {
			c.release()
		}
	})
	return c.closeErr
}
