package deeplink

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thereceipt/pos-bridge/internal/metrics"
)

type event struct {
	method  string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Invoke(method string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, event{method, payload})
	r.mu.Unlock()
}

func newTestNotifier(t *testing.T) (*Notifier, *Handle, *recorder) {
	t.Helper()
	handle := &Handle{}
	rec := &recorder{}
	handle.Attach(rec)
	return NewNotifier(handle, "", nil, nil), handle, rec
}

func TestActivate_ForwardsMatchingURI(t *testing.T) {
	n, _, rec := newTestNotifier(t)

	if !n.Activate("app://order/42") {
		t.Error("Expected activation to be forwarded")
	}

	if len(rec.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(rec.events))
	}
	if rec.events[0].method != "open" || rec.events[0].payload != "app://order/42" {
		t.Errorf("Expected open(app://order/42), got %+v", rec.events[0])
	}
}

func TestActivate_IgnoresOtherSchemes(t *testing.T) {
	n, _, rec := newTestNotifier(t)

	for _, uri := range []string{"", "http://example.com", "App://order/1", "app:/x", " app://x"} {
		if n.Activate(uri) {
			t.Errorf("Expected %q to be ignored", uri)
		}
	}

	if len(rec.events) != 0 {
		t.Errorf("Expected no events, got %d", len(rec.events))
	}
}

func TestActivate_SameURITwice(t *testing.T) {
	n, _, rec := newTestNotifier(t)

	n.Activate("app://x")
	n.Activate("app://x")

	if len(rec.events) != 2 {
		t.Errorf("Expected exactly 2 events, got %d", len(rec.events))
	}
}

func TestActivate_NoListener(t *testing.T) {
	n, handle, rec := newTestNotifier(t)
	handle.Detach()

	if n.Activate("app://order/1") {
		t.Error("Expected activation without listener to be dropped")
	}

	// Dropped activations are not queued for a later listener
	handle.Attach(rec)
	if len(rec.events) != 0 {
		t.Errorf("Expected no replayed events, got %d", len(rec.events))
	}
}

func TestNotifier_CustomScheme(t *testing.T) {
	handle := &Handle{}
	var got []any
	handle.Attach(ListenerFunc(func(method string, payload any) {
		got = append(got, payload)
	}))
	n := NewNotifier(handle, "joopos://", nil, nil)

	n.Activate("app://order/1")
	n.Activate("joopos://order/1")

	if len(got) != 1 || got[0] != "joopos://order/1" {
		t.Errorf("Expected only the custom scheme to be forwarded, got %v", got)
	}
	if n.Scheme() != "joopos://" {
		t.Errorf("Expected scheme joopos://, got %s", n.Scheme())
	}
}

func TestNotifier_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	handle := &Handle{}
	n := NewNotifier(handle, "", nil, m)

	n.Activate("http://example.com")
	n.Activate("app://a")
	handle.Attach(&recorder{})
	n.Activate("app://b")

	for outcome, want := range map[string]float64{"ignored": 1, "no_listener": 1, "forwarded": 1} {
		if got := counterValue(t, reg, "posbridge_deeplink_activations_total", outcome); got != want {
			t.Errorf("Expected %s=%v, got %v", outcome, want, got)
		}
	}
}

func TestHandle_ConcurrentAttach(t *testing.T) {
	handle := &Handle{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			handle.Attach(&recorder{})
		}()
		go func() {
			defer wg.Done()
			handle.Invoke(EventOpen, "app://x")
		}()
	}
	wg.Wait()
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
