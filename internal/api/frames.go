package api

import (
	"encoding/json"

	"github.com/thereceipt/pos-bridge/internal/channel"
	"github.com/thereceipt/pos-bridge/internal/notify"
)

// Frame types on the WebSocket
const (
	FrameCall  = "call"
	FrameReply = "reply"
	FrameEvent = "event"
	FrameAlert = "alert"
	FrameError = "error"
)

// Outbound printer events on the print channel
const (
	EventPrinterAttached = "printerAttached"
	EventPrinterDetached = "printerDetached"
)

// inboundFrame is a message received from a UI client
type inboundFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Method  string          `json:"method"`
	Args    json.RawMessage `json:"args"`
}

// Frame is a message sent to UI clients
type Frame struct {
	Type           string        `json:"type"`
	ID             string        `json:"id,omitempty"`
	Channel        string        `json:"channel,omitempty"`
	Method         string        `json:"method,omitempty"`
	Args           any           `json:"args,omitempty"`
	Result         any           `json:"result,omitempty"`
	Error          *FrameErr     `json:"error,omitempty"`
	NotImplemented bool          `json:"not_implemented,omitempty"`
	Alert          *notify.Alert `json:"alert,omitempty"`
}

// FrameErr is the error body of a reply
type FrameErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func replyFrame(id string, o channel.Outcome) Frame {
	f := Frame{Type: FrameReply, ID: id}
	switch o.Status {
	case channel.StatusSuccess:
		f.Result = o.Result
	case channel.StatusError:
		f.Error = &FrameErr{Code: o.Code, Message: o.Message, Details: o.Details}
	default:
		f.NotImplemented = true
	}
	return f
}
