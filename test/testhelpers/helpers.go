// Package testhelpers provides common utilities and helper functions for
// testing the lanchat server.
//
// This package contains reusable test utilities that are shared across unit
// and integration tests: dialing WebSocket connections, exchanging protocol
// envelopes, and asserting response properties.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanchat/lanchat/internal/server"
)

// CreateTestServer creates a test HTTP server with the given handler. It
// returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected
// Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// WebSocketURL converts a test server's base URL to its WebSocket endpoint.
func WebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// DialWebSocket connects to the server's WebSocket endpoint with the given
// Origin header and registers cleanup for the connection.
func DialWebSocket(t *testing.T, httpURL, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(httpURL), header)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// SendEnvelope marshals data into a protocol envelope and writes it as one
// text frame.
func SendEnvelope(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal %q payload: %v", event, err)
	}
	payload, err := json.Marshal(server.Envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("Failed to marshal %q envelope: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Failed to send %q: %v", event, err)
	}
}

// ReadEnvelope reads the next frame and decodes the envelope, failing the
// test if nothing arrives within the timeout.
func ReadEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}

	var env server.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Failed to decode envelope %q: %v", raw, err)
	}
	return env
}

// ReadEvent reads the next frame, asserts its event name, and decodes the
// payload into v (which may be nil to discard it).
func ReadEvent(t *testing.T, conn *websocket.Conn, wantEvent string, v any) {
	t.Helper()

	env := ReadEnvelope(t, conn, 2*time.Second)
	if env.Event != wantEvent {
		t.Fatalf("Expected event %q, got %q (data: %s)", wantEvent, env.Event, env.Data)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("Failed to decode %q data: %v", wantEvent, err)
	}
}

// ExpectNoMessage asserts that no frame arrives within the timeout. The
// connection should not be read from again afterwards.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", raw)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}
