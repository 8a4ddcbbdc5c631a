package printer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/metrics"
)

// PayloadKind says how a request's payload was supplied
type PayloadKind int

const (
	PayloadBytes PayloadKind = iota
	PayloadText
)

func (k PayloadKind) String() string {
	if k == PayloadText {
		return "text"
	}
	return "bytes"
}

// Framer turns caller payloads into device-ready bytes
type Framer interface {
	FrameRaw(data []byte) []byte
	FrameText(text string) ([]byte, error)
}

// Pending is the handle for an in-flight print request. It resolves exactly
// once; Done is closed at that point and Err holds the outcome.
type Pending struct {
	ID   string
	Kind PayloadKind

	done chan struct{}
	once sync.Once
	err  error
}

func newPending(kind PayloadKind) *Pending {
	return &Pending{
		ID:   uuid.New().String(),
		Kind: kind,
		done: make(chan struct{}),
	}
}

// Done is closed when the request has a terminal result
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns nil on success, ErrInvalidArgument or a *DeviceError.
// It is only meaningful after Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the request resolves or ctx ends. Ending ctx does not
// cancel the request.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve records the result; only the first call has any effect
func (p *Pending) resolve(err error) bool {
	resolved := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		resolved = true
	})
	return resolved
}

func (p *Pending) isResolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// DispatcherOptions tunes a Dispatcher
type DispatcherOptions struct {
	// CompletionTimeout bounds a request end to end. When the transport
	// never reports back the request fails with "print timed out". Zero
	// disables the bound.
	CompletionTimeout time.Duration
	Logger            *zap.Logger
	Metrics           *metrics.Recorder
}

// Dispatcher turns print requests into transport writes. Requests are not
// serialized here and never retried.
type Dispatcher struct {
	transport         Transport
	framer            Framer
	completionTimeout time.Duration
	log               *zap.Logger
	metrics           *metrics.Recorder

	mu            sync.RWMutex
	onDeviceError func(requestID, diagnostic string)
}

// NewDispatcher creates a dispatcher over transport
func NewDispatcher(transport Transport, framer Framer, opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Dispatcher{
		transport:         transport,
		framer:            framer,
		completionTimeout: opts.CompletionTimeout,
		log:               opts.Logger,
		metrics:           opts.Metrics,
	}
}

// OnDeviceError sets a callback run after a request fails with a DeviceError
func (d *Dispatcher) OnDeviceError(callback func(requestID, diagnostic string)) {
	d.mu.Lock()
	d.onDeviceError = callback
	d.mu.Unlock()
}

// PrintBytes prints a caller-built payload. It returns immediately.
func (d *Dispatcher) PrintBytes(payload []byte) *Pending {
	p := newPending(PayloadBytes)
	if len(payload) == 0 {
		d.finish(p, time.Now(), ErrInvalidArgument)
		return p
	}

	go d.run(p, time.Now(), d.framer.FrameRaw(payload))
	return p
}

// PrintText encodes and prints text. It returns immediately.
func (d *Dispatcher) PrintText(text string) *Pending {
	p := newPending(PayloadText)
	if text == "" {
		d.finish(p, time.Now(), ErrInvalidArgument)
		return p
	}

	framed, err := d.framer.FrameText(text)
	if err != nil {
		d.finish(p, time.Now(), &DeviceError{Diagnostic: err.Error()})
		return p
	}

	go d.run(p, time.Now(), framed)
	return p
}

func (d *Dispatcher) run(p *Pending, start time.Time, payload []byte) {
	ctx, cancel := context.WithCancel(context.Background())

	var watchdog *time.Timer
	if d.completionTimeout > 0 {
		watchdog = time.AfterFunc(d.completionTimeout, func() {
			d.finish(p, start, &DeviceError{Diagnostic: "print timed out"})
			cancel()
		})
	}
	stop := func() {
		if watchdog != nil {
			watchdog.Stop()
		}
		cancel()
	}

	conn, err := d.transport.Open(ctx)
	if err != nil {
		stop()
		d.finish(p, start, &DeviceError{Diagnostic: err.Error()})
		return
	}

	// The watchdog may have fired while we waited for the device
	if p.isResolved() {
		stop()
		conn.Close()
		return
	}

	conn.Write(payload, func(werr error) {
		stop()
		if cerr := conn.Close(); cerr != nil {
			d.log.Debug("closing printer connection failed",
				zap.String("request_id", p.ID), zap.Error(cerr))
		}

		var result error
		if werr != nil {
			result = &DeviceError{Diagnostic: werr.Error()}
		}
		if !d.finish(p, start, result) {
			d.log.Warn("late transport completion ignored",
				zap.String("request_id", p.ID), zap.Error(werr))
		}
	})
}

// finish resolves p and reports the outcome once
func (d *Dispatcher) finish(p *Pending, start time.Time, err error) bool {
	if !p.resolve(err) {
		return false
	}

	outcome := "ok"
	switch err.(type) {
	case nil:
		d.log.Info("print completed",
			zap.String("request_id", p.ID),
			zap.Stringer("kind", p.Kind),
			zap.Duration("elapsed", time.Since(start)))
	case *DeviceError:
		outcome = "device_error"
		diagnostic := Diagnostic(err)
		d.log.Warn("print failed",
			zap.String("request_id", p.ID),
			zap.Stringer("kind", p.Kind),
			zap.String("diagnostic", diagnostic))

		d.mu.RLock()
		callback := d.onDeviceError
		d.mu.RUnlock()
		if callback != nil {
			callback(p.ID, diagnostic)
		}
	default:
		outcome = "invalid_argument"
		d.log.Debug("print rejected",
			zap.String("request_id", p.ID),
			zap.Stringer("kind", p.Kind),
			zap.Error(err))
	}

	d.metrics.Print(p.Kind.String(), outcome, time.Since(start))
	return true
}
