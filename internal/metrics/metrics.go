// Package metrics exposes Prometheus instrumentation for the bridge
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the bridge's collectors. A nil *Recorder records nothing.
type Recorder struct {
	calls            *prometheus.CounterVec
	prints           *prometheus.CounterVec
	printDuration    *prometheus.HistogramVec
	deepLinks        *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	printersAttached prometheus.Gauge
}

// New creates a recorder and registers its collectors with reg
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posbridge",
			Name:      "method_calls_total",
			Help:      "Method channel calls by method and reply code.",
		}, []string{"method", "code"}),
		prints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posbridge",
			Name:      "print_requests_total",
			Help:      "Print requests by payload kind and outcome.",
		}, []string{"kind", "outcome"}),
		printDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "posbridge",
			Name:      "print_duration_seconds",
			Help:      "Time from request to terminal result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		deepLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posbridge",
			Name:      "deeplink_activations_total",
			Help:      "Deep-link activations by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posbridge",
			Name:      "printer_alerts_total",
			Help:      "Printer error alerts by delivery outcome.",
		}, []string{"outcome"}),
		printersAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "posbridge",
			Name:      "printers_attached",
			Help:      "Printer-like USB devices currently attached.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.calls, r.prints, r.printDuration, r.deepLinks, r.alerts, r.printersAttached,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Call counts a method channel reply
func (r *Recorder) Call(method, code string) {
	if r == nil {
		return
	}
	r.calls.WithLabelValues(method, code).Inc()
}

// Print records a terminal print result
func (r *Recorder) Print(kind, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.prints.WithLabelValues(kind, outcome).Inc()
	r.printDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// DeepLink counts an activation outcome (forwarded, no_listener, ignored)
func (r *Recorder) DeepLink(outcome string) {
	if r == nil {
		return
	}
	r.deepLinks.WithLabelValues(outcome).Inc()
}

// Alert counts an alert outcome (sent, throttled)
func (r *Recorder) Alert(outcome string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(outcome).Inc()
}

// PrintersAttached sets the attached printer gauge
func (r *Recorder) PrintersAttached(n int) {
	if r == nil {
		return
	}
	r.printersAttached.Set(float64(n))
}
