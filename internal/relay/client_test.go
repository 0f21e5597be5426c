package relay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/relay"
	"github.com/Tyrowin/roomrelay/internal/testhelpers"
)

// newClientPair returns a relay.Client on the server side of a websocket and
// the raw peer connection dialled to it.
func newClientPair(t *testing.T, cfg relay.ClientConfig) (*relay.Client, *websocket.Conn) {
	t.Helper()

	clients := make(chan *relay.Client, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		clients <- relay.NewClient(conn, r.RemoteAddr, r.URL.Query().Get("user"), cfg, nil)
	}))
	t.Cleanup(srv.Close)

	peer := testhelpers.MustConnect(t, testhelpers.WebSocketURL(srv.URL, "/?user=alice"))

	select {
	case c := <-clients:
		t.Cleanup(func() { _ = c.Close() })
		return c, peer
	case <-time.After(2 * time.Second):
		t.Fatal("server never produced a client")
		return nil, nil
	}
}

func TestClientIdentity(t *testing.T) {
	c1, _ := newClientPair(t, relay.ClientConfig{})
	c2, _ := newClientPair(t, relay.ClientConfig{})

	if c1.ID() == "" || c1.ID() == c2.ID() {
		t.Errorf("IDs %q and %q are not distinct and non-empty", c1.ID(), c2.ID())
	}
	if c1.User() != "alice" {
		t.Errorf("User() = %q, want alice", c1.User())
	}
	if c1.Addr() == "" {
		t.Error("Addr() is empty")
	}
}

func TestClientSendWritesOneFramePerMessage(t *testing.T) {
	c, peer := newClientPair(t, relay.ClientConfig{})

	msgs := []string{"first", "second", "third"}
	for _, m := range msgs {
		if err := c.Send(context.Background(), []byte(m)); err != nil {
			t.Fatalf("Send(%q) error = %v", m, err)
		}
	}

	for _, want := range msgs {
		if err := peer.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatal(err)
		}
		typ, got, err := peer.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if typ != websocket.TextMessage {
			t.Errorf("frame type = %d, want text", typ)
		}
		if string(got) != want {
			t.Errorf("frame = %q, want %q", got, want)
		}
	}
}

func TestClientReceive(t *testing.T) {
	c, peer := newClientPair(t, relay.ClientConfig{})

	testhelpers.SendText(t, peer, "hello")
	if err := peer.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}

	got, err := c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Receive() = %q, want hello", got)
	}

	got, err = c.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(got) != "\x01\x02" {
		t.Errorf("Receive() = %v, want binary payload", got)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c, peer := newClientPair(t, relay.ClientConfig{})

	if err := c.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after Close()")
	}

	_, err := testhelpers.ReadText(peer, 2*time.Second)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("peer read error = %v, want normal closure", err)
	}
}

func TestClientOperationsAfterClose(t *testing.T) {
	c, _ := newClientPair(t, relay.ClientConfig{})
	_ = c.Close()

	err := c.Send(context.Background(), []byte("late"))
	if !errors.Is(err, relay.ErrSend) || !errors.Is(err, relay.ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrSend wrapping ErrClosed", err)
	}

	_, err = c.Receive(context.Background())
	if !errors.Is(err, relay.ErrReceive) || !errors.Is(err, relay.ErrClosed) {
		t.Errorf("Receive() after Close error = %v, want ErrReceive wrapping ErrClosed", err)
	}
}

func TestClientCloseUnblocksReceive(t *testing.T) {
	c, _ := newClientPair(t, relay.ClientConfig{})

	errc := make(chan error, 1)
	go func() {
		_, err := c.Receive(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = c.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, relay.ErrReceive) {
			t.Errorf("Receive() error = %v, want ErrReceive", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive() still blocked after Close()")
	}
}

func TestClientReceiveAfterPeerDisconnect(t *testing.T) {
	c, peer := newClientPair(t, relay.ClientConfig{})

	if err := testhelpers.CloseWebSocket(peer); err != nil {
		t.Fatalf("CloseWebSocket() error = %v", err)
	}

	_, err := c.Receive(context.Background())
	if !errors.Is(err, relay.ErrReceive) {
		t.Errorf("Receive() error = %v, want ErrReceive", err)
	}
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("Receive() error = %v, want normal closure", err)
	}
}

func TestClientReadLimit(t *testing.T) {
	c, peer := newClientPair(t, relay.ClientConfig{MaxMessageSize: 16})

	testhelpers.SendText(t, peer, strings.Repeat("x", 64))

	_, err := c.Receive(context.Background())
	if !errors.Is(err, websocket.ErrReadLimit) {
		t.Errorf("Receive() error = %v, want ErrReadLimit", err)
	}
}

func TestClientReceiveWithCancelledContext(t *testing.T) {
	c, _ := newClientPair(t, relay.ClientConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Receive(ctx)
	if !errors.Is(err, relay.ErrReceive) || !errors.Is(err, context.Canceled) {
		t.Errorf("Receive() error = %v, want ErrReceive wrapping context.Canceled", err)
	}
}
