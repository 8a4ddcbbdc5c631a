package notify

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestAlerter(interval time.Duration, burst int) (*Alerter, *[]Alert, *fakeClock) {
	var alerts []Alert
	a := NewAlerter(SinkFunc(func(al Alert) {
		alerts = append(alerts, al)
	}), interval, burst, nil, nil)

	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	a.now = clock.now
	return a, &alerts, clock
}

func TestPrinterError_PublishesAlert(t *testing.T) {
	a, alerts, _ := newTestAlerter(10*time.Second, 3)

	if !a.PrinterError("req-1", "No USB printer detected") {
		t.Fatal("Expected alert to be sent")
	}

	if len(*alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(*alerts))
	}
	got := (*alerts)[0]
	if got.Title != "Printer Error" || got.Message != "No USB printer detected" || got.RequestID != "req-1" {
		t.Errorf("Unexpected alert: %+v", got)
	}
}

func TestPrinterError_ThrottlesRepeats(t *testing.T) {
	a, alerts, clock := newTestAlerter(10*time.Second, 2)

	for i := 0; i < 5; i++ {
		a.PrinterError("req", "disconnected")
	}
	if len(*alerts) != 2 {
		t.Errorf("Expected burst of 2 alerts, got %d", len(*alerts))
	}

	clock.t = clock.t.Add(10 * time.Second)
	if !a.PrinterError("req", "disconnected") {
		t.Error("Expected alert after interval elapsed")
	}
}

func TestPrinterError_DistinctDiagnosticsIndependent(t *testing.T) {
	a, alerts, _ := newTestAlerter(time.Minute, 1)

	a.PrinterError("a", "disconnected")
	a.PrinterError("b", "disconnected")
	a.PrinterError("c", "Failed to claim interface")

	if len(*alerts) != 2 {
		t.Errorf("Expected one alert per diagnostic, got %d", len(*alerts))
	}
}

func TestPrinterError_NoThrottle(t *testing.T) {
	a, alerts, _ := newTestAlerter(0, 1)

	for i := 0; i < 10; i++ {
		a.PrinterError("req", "disconnected")
	}
	if len(*alerts) != 10 {
		t.Errorf("Expected every alert delivered, got %d", len(*alerts))
	}
}
