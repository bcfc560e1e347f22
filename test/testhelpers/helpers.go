// Package testhelpers provides common utilities for testing the chat relay.
//
// It contains helpers shared across unit and integration tests: dialing
// WebSocket connections with a valid origin, sending event envelopes, and
// waiting for specific events while tolerating unrelated broadcasts.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/internal/server"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// DialChat opens a WebSocket connection to the server's /ws endpoint with
// the given Origin header.
func DialChat(t *testing.T, wsURL, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Origin", origin)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes an event envelope with an optional ack correlation id.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any, id *int64) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", event, err)
	}
	envelope := server.Envelope{Event: event, Data: payload, ID: id}
	if err := conn.WriteJSON(envelope); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// ReadEnvelope reads the next envelope within the timeout.
func ReadEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var envelope server.Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}
	return envelope
}

// WaitForEvent reads envelopes until one matches the given event name,
// discarding unrelated broadcasts along the way.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) server.Envelope {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var envelope server.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("Timed out waiting for %q event: %v", event, err)
		}
		if envelope.Event == event {
			return envelope
		}
	}
	t.Fatalf("Timed out waiting for %q event", event)
	return server.Envelope{}
}

// ExpectNoEvent asserts that no envelope with the given name arrives within
// the timeout. Unrelated events are ignored.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var envelope server.Envelope
		err := conn.ReadJSON(&envelope)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			t.Fatalf("Unexpected error while waiting for absence of %q: %v", event, err)
		}
		if envelope.Event == event {
			t.Fatalf("Expected no %q event, but received one", event)
		}
	}
}

// DecodePayload unmarshals an envelope payload into dst.
func DecodePayload(t *testing.T, envelope server.Envelope, dst any) {
	t.Helper()

	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", envelope.Event, err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
