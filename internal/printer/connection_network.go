package printer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// NetworkTransport prints to a raw TCP (port 9100) printer
type NetworkTransport struct {
	address      string
	dialTimeout  time.Duration
	writeTimeout time.Duration
	lock         deviceLock
}

// NewNetworkTransport creates a network transport. A zero port uses 9100.
func NewNetworkTransport(host string, port int, dialTimeout, writeTimeout time.Duration) *NetworkTransport {
	if port == 0 {
		port = 9100
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	return &NetworkTransport{
		address:      net.JoinHostPort(host, strconv.Itoa(port)),
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
		lock:         newDeviceLock(),
	}
}

// Open dials the printer for one print request
func (t *NetworkTransport) Open(ctx context.Context) (Connection, error) {
	if err := t.lock.acquire(ctx); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		t.lock.release()
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &streamConnection{
		w:       conn,
		timeout: t.writeTimeout,
		label:   "network",
		release: t.lock.release,
	}, nil
}
