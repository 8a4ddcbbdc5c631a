// Package deeplink forwards activation URIs with a recognized scheme to the
// UI-side listener
package deeplink

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/metrics"
)

const (
	// DefaultScheme is the prefix an activation URI must carry to be forwarded
	DefaultScheme = "app://"
	// EventOpen is the method invoked on the listener for a forwarded URI
	EventOpen = "open"
)

// Listener receives outbound events on the deep-link channel
type Listener interface {
	Invoke(method string, payload any)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(method string, payload any)

// Invoke calls f
func (f ListenerFunc) Invoke(method string, payload any) {
	f(method, payload)
}

// Handle holds the currently attached listener, if any. The zero value has
// no listener attached.
type Handle struct {
	mu       sync.RWMutex
	listener Listener
}

// Attach sets the listener, replacing any previous one
func (h *Handle) Attach(l Listener) {
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
}

// Detach clears the listener
func (h *Handle) Detach() {
	h.mu.Lock()
	h.listener = nil
	h.mu.Unlock()
}

// Invoke delivers an event to the attached listener and reports whether
// one was attached. Events with no listener are dropped.
func (h *Handle) Invoke(method string, payload any) bool {
	h.mu.RLock()
	l := h.listener
	h.mu.RUnlock()

	if l == nil {
		return false
	}
	l.Invoke(method, payload)
	return true
}

// Notifier filters activations and forwards matching URIs
type Notifier struct {
	scheme  string
	handle  *Handle
	log     *zap.Logger
	metrics *metrics.Recorder
}

// NewNotifier creates a notifier delivering through handle. An empty scheme
// means DefaultScheme.
func NewNotifier(handle *Handle, scheme string, logger *zap.Logger, m *metrics.Recorder) *Notifier {
	if scheme == "" {
		scheme = DefaultScheme
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		scheme:  scheme,
		handle:  handle,
		log:     logger,
		metrics: m,
	}
}

// Scheme returns the prefix URIs must start with
func (n *Notifier) Scheme() string {
	return n.scheme
}

// Activate handles one activation, at process start or any later
// re-activation. It reports whether the URI reached a listener.
func (n *Notifier) Activate(uri string) bool {
	if uri == "" || !strings.HasPrefix(uri, n.scheme) {
		n.log.Debug("activation ignored", zap.String("uri", uri))
		n.metrics.DeepLink("ignored")
		return false
	}

	if !n.handle.Invoke(EventOpen, uri) {
		n.log.Debug("activation dropped, no listener", zap.String("uri", uri))
		n.metrics.DeepLink("no_listener")
		return false
	}

	n.log.Info("activation forwarded", zap.String("uri", uri))
	n.metrics.DeepLink("forwarded")
	return true
}
