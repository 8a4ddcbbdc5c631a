// Package channel routes named method calls from the UI layer to the
// print dispatcher and relays one reply per call
package channel

import (
	"errors"

	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/metrics"
	"github.com/thereceipt/pos-bridge/internal/printer"
)

// Reply error codes
const (
	CodeArgument = "ARG"
	CodeDevice   = "USB"
)

// ErrUnsupported marks a method name the router does not know
var ErrUnsupported = errors.New("method not implemented")

// Call is one inbound method invocation. Arguments may hold any value,
// including nil.
type Call struct {
	Method    string
	Arguments any
}

// Printer is the dispatcher surface the router forwards to
type Printer interface {
	PrintBytes(payload []byte) *printer.Pending
	PrintText(text string) *printer.Pending
}

// Router validates call arguments and forwards them to the printer
type Router struct {
	printer Printer
	log     *zap.Logger
	metrics *metrics.Recorder
}

// NewRouter creates a router over p
func NewRouter(p Printer, logger *zap.Logger, m *metrics.Recorder) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Router{
		printer: p,
		log:     logger,
		metrics: m,
	}
}

// Handle dispatches call and arranges for reply to receive exactly one
// response. It never blocks on the printer.
func (r *Router) Handle(call Call, reply Reply) {
	method := ParseMethod(call.Method)
	reply = &onceReply{
		next:   reply,
		method: call.Method,
		log:    r.log,
		sent: func(code string) {
			r.metrics.Call(method.String(), code)
		},
	}

	switch method {
	case MethodPrintUsbBytes:
		data, ok := call.Arguments.([]byte)
		if !ok || data == nil {
			reply.Error(CodeArgument, "bytes null", nil)
			return
		}
		if len(data) == 0 {
			reply.Error(CodeArgument, "bytes empty", nil)
			return
		}
		r.relay(call.Method, r.printer.PrintBytes(data), reply)

	case MethodPrintUsbText:
		text, ok := call.Arguments.(string)
		if !ok {
			reply.Error(CodeArgument, "text null", nil)
			return
		}
		if text == "" {
			reply.Error(CodeArgument, "text empty", nil)
			return
		}
		r.relay(call.Method, r.printer.PrintText(text), reply)

	default:
		r.log.Debug("method not implemented", zap.String("method", call.Method))
		reply.NotImplemented()
	}
}

// relay waits for the request off the caller's goroutine
func (r *Router) relay(method string, p *printer.Pending, reply Reply) {
	go func() {
		<-p.Done()
		err := p.Err()

		switch {
		case err == nil:
			reply.Success(true)
		case errors.Is(err, printer.ErrInvalidArgument):
			reply.Error(CodeArgument, err.Error(), nil)
		default:
			r.log.Debug("relaying device error",
				zap.String("method", method),
				zap.String("request_id", p.ID),
				zap.Error(err))
			reply.Error(CodeDevice, printer.Diagnostic(err), nil)
		}
	}()
}
