package api

import (
	"sync"

	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/deeplink"
	"github.com/thereceipt/pos-bridge/internal/notify"
	"github.com/thereceipt/pos-bridge/internal/printer"
)

// Hub tracks connected UI clients and fans events out to them. While at
// least one client is connected the hub is the deep-link listener.
type Hub struct {
	printChannel    string
	deepLinkChannel string
	handle          *deeplink.Handle
	log             *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. handle may be nil when deep links are not routed
// to clients.
func NewHub(handle *deeplink.Handle, printChannel, deepLinkChannel string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		printChannel:    printChannel,
		deepLinkChannel: deepLinkChannel,
		handle:          handle,
		log:             logger,
		clients:         make(map[*client]struct{}),
	}
}

// register adds c. The listener handle changes under h.mu so that a
// reconnect racing a disconnect cannot leave clients without a listener.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if len(h.clients) == 1 && h.handle != nil {
		h.handle.Attach(deeplink.ListenerFunc(h.invokeDeepLink))
	}
	h.mu.Unlock()

	h.log.Info("websocket client connected", zap.String("remote", c.remote))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	if len(h.clients) == 0 && h.handle != nil {
		h.handle.Detach()
	}
	h.mu.Unlock()

	h.log.Info("websocket client disconnected", zap.String("remote", c.remote))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues f for every client. Clients with a full send buffer
// miss the frame.
func (h *Hub) Broadcast(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.enqueue(f) {
			h.log.Warn("client send buffer full, frame dropped",
				zap.String("remote", c.remote), zap.String("type", f.Type))
		}
	}
}

func (h *Hub) invokeDeepLink(method string, payload any) {
	h.Broadcast(Frame{
		Type:    FrameEvent,
		Channel: h.deepLinkChannel,
		Method:  method,
		Args:    payload,
	})
}

// PublishAlert pushes an operator alert to every client
func (h *Hub) PublishAlert(a notify.Alert) {
	h.Broadcast(Frame{Type: FrameAlert, Alert: &a})
}

// PrinterAttached announces a newly attached printer
func (h *Hub) PrinterAttached(p *printer.Printer) {
	h.Broadcast(Frame{
		Type:    FrameEvent,
		Channel: h.printChannel,
		Method:  EventPrinterAttached,
		Args:    p,
	})
}

// PrinterDetached announces a printer that went away
func (h *Hub) PrinterDetached(p *printer.Printer) {
	h.Broadcast(Frame{
		Type:    FrameEvent,
		Channel: h.printChannel,
		Method:  EventPrinterDetached,
		Args:    p,
	})
}

// closeAll disconnects every client
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
