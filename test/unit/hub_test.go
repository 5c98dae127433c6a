package unit

import (
	"testing"
	"time"

	"github.com/lanchat/lanchat/internal/server"
)

// TestNewHub verifies that NewHub returns a hub whose channels accept
// traffic once the loop is running.
func TestNewHub(t *testing.T) {
	hub := server.NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if hub.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
}

// TestHubSkipsNilRegistration verifies that a nil client registration is
// ignored rather than crashing the loop.
func TestHubSkipsNilRegistration(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Register channel did not accept input")
	}

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

// TestHubShutdownWithoutClients verifies that a hub with no connections
// shuts down promptly.
func TestHubShutdownWithoutClients(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	start := time.Now()
	if err := hub.Shutdown(2 * time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown took too long: %s", elapsed)
	}
}

// TestHubUnregisterUnknownClient verifies that reporting a disconnect for a
// client the hub never tracked is a no-op.
func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	client := server.NewClient(nil, hub, "127.0.0.1:12345")
	select {
	case hub.GetUnregisterChan() <- client:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Unregister channel did not accept input")
	}

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

// TestNewClient verifies client construction without a live connection.
func TestNewClient(t *testing.T) {
	hub := server.NewHub()

	client := server.NewClient(nil, hub, "127.0.0.1:12345")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.ID() == "" {
		t.Error("Client id is empty")
	}
	if client.GetSendChan() == nil {
		t.Error("Client send channel is nil")
	}

	other := server.NewClient(nil, hub, "127.0.0.1:12346")
	if client.ID() == other.ID() {
		t.Error("Two clients received the same connection id")
	}
}
