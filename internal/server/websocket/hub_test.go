package websocket

import (
	"testing"
	"time"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil)
	hub.Register(client)
	waitForCount(t, hub, 1)

	hub.Unregister(client)
	waitForCount(t, hub, 0)

	if client.ctx.Err() == nil {
		t.Error("unregistered client context should be cancelled")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := newTestHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	client := NewClient(hub, nil)
	hub.Register(client)
	waitForCount(t, hub, 1)

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if client.ctx.Err() == nil {
		t.Error("client context should be cancelled")
	}

	// Calls after Stop must not block.
	late := NewClient(hub, nil)
	hub.Register(late)
	hub.Unregister(late)
	if late.ctx.Err() == nil {
		t.Error("client registered after Stop should be closed")
	}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}
