// Package notify raises user-facing printer error alerts
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/thereceipt/pos-bridge/internal/metrics"
)

// TitlePrinterError is the title of every device failure alert
const TitlePrinterError = "Printer Error"

// Alert is a notification shown to the operator
type Alert struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink delivers alerts to the UI
type Sink interface {
	PublishAlert(Alert)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Alert)

// PublishAlert calls f
func (f SinkFunc) PublishAlert(a Alert) {
	f(a)
}

// Alerter throttles alerts per diagnostic so a flapping printer does not
// flood the UI while distinct failures still get through
type Alerter struct {
	sink    Sink
	limit   rate.Limit
	burst   int
	log     *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const idleTTL = 10 * time.Minute

// NewAlerter creates an alerter allowing burst alerts per diagnostic and
// then one per interval. A non-positive interval disables throttling.
func NewAlerter(sink Sink, interval time.Duration, burst int, logger *zap.Logger, m *metrics.Recorder) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Alerter{
		sink:    sink,
		limit:   limit,
		burst:   burst,
		log:     logger,
		metrics: m,
		now:     time.Now,
		byKey:   make(map[string]*entry),
	}
}

// PrinterError raises a "Printer Error" alert for a failed request and
// reports whether it was delivered
func (a *Alerter) PrinterError(requestID, diagnostic string) bool {
	now := a.now()
	if !a.allow(diagnostic, now) {
		a.log.Debug("printer alert throttled",
			zap.String("request_id", requestID),
			zap.String("diagnostic", diagnostic))
		a.metrics.Alert("throttled")
		return false
	}

	a.sink.PublishAlert(Alert{
		Title:     TitlePrinterError,
		Message:   diagnostic,
		RequestID: requestID,
		Time:      now,
	})
	a.metrics.Alert("sent")
	return true
}

func (a *Alerter) allow(key string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.byKey[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(a.limit, a.burst)}
		a.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	a.hits++
	if a.hits%256 == 0 {
		cutoff := now.Add(-idleTTL)
		for k, v := range a.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(a.byKey, k)
			}
		}
	}

	return allowed
}
