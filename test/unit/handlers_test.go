// Package unit contains unit tests for individual components of the chat
// relay server.
//
// These tests focus on testing specific functions and methods in isolation,
// without real network connections or a running hub event loop.
package unit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/server"
)

// TestHealthHandlerUnit verifies the health handler responds with the
// expected status and body regardless of method.
func TestHealthHandlerUnit(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET request to health endpoint",
			method:         "GET",
			expectedStatus: http.StatusOK,
			expectedBody:   "Chat relay is running!",
		},
		{
			name:           "POST request to health endpoint",
			method:         "POST",
			expectedStatus: http.StatusOK,
			expectedBody:   "Chat relay is running!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "/healthz", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}

			rr := httptest.NewRecorder()
			server.HealthHandler(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					status, tt.expectedStatus)
			}
			if rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %v want %v",
					rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

// TestWebSocketHandlerMethodValidation verifies that non-GET requests to
// the WebSocket endpoint are rejected before any upgrade is attempted.
func TestWebSocketHandlerMethodValidation(t *testing.T) {
	methods := []string{"POST", "PUT", "DELETE", "PATCH"}

	for _, method := range methods {
		t.Run(method+" request should be rejected", func(t *testing.T) {
			req := httptest.NewRequest(method, "/ws", nil)
			w := httptest.NewRecorder()

			server.WebSocketHandler(w, req)

			resp := w.Result()
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("Expected status code %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
			}

			expectedBody := "Method not allowed. WebSocket endpoint only accepts GET requests."
			if body := strings.TrimSpace(w.Body.String()); body != expectedBody {
				t.Errorf("Expected body %q, got %q", expectedBody, body)
			}
		})
	}
}

// TestSetupRoutes verifies that SetupRoutes registers the health endpoint.
func TestSetupRoutes(t *testing.T) {
	mux := server.SetupRoutes()
	if mux == nil {
		t.Fatal("SetupRoutes returned nil mux")
	}

	req, err := http.NewRequest("GET", "/healthz", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}
	if expected := "Chat relay is running!"; rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v",
			rr.Body.String(), expected)
	}
}

// TestCreateServer verifies the HTTP server configuration including
// address, handler, and timeout settings.
func TestCreateServer(t *testing.T) {
	port := ":3500"
	mux := server.SetupRoutes()

	srv := server.CreateServer(port, mux)

	if srv.Addr != port {
		t.Errorf("Expected server addr %s, got %s", port, srv.Addr)
	}
	if srv.Handler != mux {
		t.Error("Server handler not set correctly")
	}
	if srv.ReadTimeout != 15*time.Second {
		t.Errorf("Expected ReadTimeout %v, got %v", 15*time.Second, srv.ReadTimeout)
	}
	if srv.WriteTimeout != 15*time.Second {
		t.Errorf("Expected WriteTimeout %v, got %v", 15*time.Second, srv.WriteTimeout)
	}
	if srv.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout %v, got %v", 60*time.Second, srv.IdleTimeout)
	}
}
