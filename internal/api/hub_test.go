package api

import (
	"fmt"
	"sync"
	"testing"

	"github.com/thereceipt/pos-bridge/internal/deeplink"
)

func newHubClient(remote string) *client {
	return &client{remote: remote, send: make(chan Frame, sendBuffer)}
}

func TestHub_ReconnectKeepsListener(t *testing.T) {
	handle := &deeplink.Handle{}
	hub := NewHub(handle, testPrintChannel, testDeepLinkChannel, nil)
	notifier := deeplink.NewNotifier(handle, "", nil, nil)

	for i := 0; i < 1000; i++ {
		old := newHubClient(fmt.Sprintf("old-%d", i))
		hub.register(old)

		next := newHubClient(fmt.Sprintf("new-%d", i))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.unregister(old)
		}()
		go func() {
			defer wg.Done()
			hub.register(next)
		}()
		wg.Wait()

		if hub.ClientCount() != 1 {
			t.Fatalf("Iteration %d: expected 1 client, got %d", i, hub.ClientCount())
		}
		if !notifier.Activate("app://order/42") {
			t.Fatalf("Iteration %d: connected client lost the deep-link listener", i)
		}

		hub.unregister(next)
		if notifier.Activate("app://order/42") {
			t.Fatalf("Iteration %d: activation forwarded with no client connected", i)
		}
	}
}

func TestHub_NewClientBeforeOldLeaves(t *testing.T) {
	handle := &deeplink.Handle{}
	hub := NewHub(handle, testPrintChannel, testDeepLinkChannel, nil)
	notifier := deeplink.NewNotifier(handle, "", nil, nil)

	old := newHubClient("old")
	next := newHubClient("new")
	hub.register(old)
	hub.register(next)
	hub.unregister(old)

	if !notifier.Activate("app://order/42") {
		t.Fatal("Expected remaining client to keep the listener")
	}

	select {
	case f := <-next.send:
		if f.Method != deeplink.EventOpen || f.Args != "app://order/42" {
			t.Errorf("Expected open event, got %+v", f)
		}
	default:
		t.Error("Expected event queued for the remaining client")
	}

	// Unregistering twice must not detach a listener another client needs
	hub.unregister(old)
	if !notifier.Activate("app://order/43") {
		t.Error("Expected duplicate unregister to be a no-op")
	}
}
