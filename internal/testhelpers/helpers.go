// Package testhelpers provides common utilities and helper functions for testing the relay.
//
// It provides functions for dialing websocket endpoints of a test server,
// reading messages with deadlines and waiting for asynchronous conditions to
// reduce code duplication in test files.
package testhelpers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestOrigin is the origin sent by ConnectWebSocket; it matches the default
// allow-list.
const TestOrigin = "http://localhost:8080"

// WebSocketURL converts an httptest server URL and a path into a ws:// URL.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// TestOrigin as the Origin header.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	conn, _, err := DialWebSocket(url, origin)
	return conn, err
}

// DialWebSocket dials url and returns the handshake status code (0 if no
// response was received).
func DialWebSocket(url, origin string) (*websocket.Conn, int, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	status := 0
	if resp != nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	}
	return conn, status, err
}

// MustConnect dials url and fails the test on error. The connection is
// closed when the test ends.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(url)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendText writes one text message.
func SendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("Failed to send %q: %v", text, err)
	}
}

// ReadText reads one message within timeout.
func ReadText(conn *websocket.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// ExpectText reads one message and fails the test unless it equals want.
func ExpectText(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	got, err := ReadText(conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected message %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected message %q, got %q", want, got)
	}
}

// ExpectNoMessage fails the test if a message arrives within timeout. After
// a timeout gorilla connections can no longer be read from.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if msg, err := ReadText(conn, timeout); err == nil {
		t.Fatalf("Expected no message, got %q", msg)
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

// WaitFor polls cond every 5ms until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("Timed out after %s waiting for %s", timeout, what)
	}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
