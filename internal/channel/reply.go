package channel

import (
	"sync"

	"go.uber.org/zap"
)

// Status is the kind of terminal response a call received
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "not_implemented"
	}
}

// Outcome is a call's terminal response
type Outcome struct {
	Status  Status
	Result  any
	Code    string
	Message string
	Details any
}

// Reply receives the terminal response to a call. Exactly one method is
// invoked per call, possibly from another goroutine.
type Reply interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// ReplyFunc adapts a function receiving the Outcome to Reply
type ReplyFunc func(Outcome)

// Success implements Reply
func (f ReplyFunc) Success(result any) {
	f(Outcome{Status: StatusSuccess, Result: result})
}

// Error implements Reply
func (f ReplyFunc) Error(code, message string, details any) {
	f(Outcome{Status: StatusError, Code: code, Message: message, Details: details})
}

// NotImplemented implements Reply
func (f ReplyFunc) NotImplemented() {
	f(Outcome{Status: StatusNotImplemented})
}

// onceReply forwards the first response and drops the rest
type onceReply struct {
	next   Reply
	method string
	log    *zap.Logger
	sent   func(code string)
	once   sync.Once
}

func (r *onceReply) deliver(code string, send func()) {
	delivered := false
	r.once.Do(func() {
		delivered = true
		if r.sent != nil {
			r.sent(code)
		}
		send()
	})
	if !delivered {
		r.log.Error("duplicate reply dropped", zap.String("method", r.method), zap.String("code", code))
	}
}

func (r *onceReply) Success(result any) {
	r.deliver("ok", func() { r.next.Success(result) })
}

func (r *onceReply) Error(code, message string, details any) {
	r.deliver(code, func() { r.next.Error(code, message, details) })
}

func (r *onceReply) NotImplemented() {
	r.deliver("not_implemented", r.next.NotImplemented)
}
