package server_test

import (
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/server"
	"github.com/Tyrowin/roomrelay/internal/testhelpers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestServer starts the full route set on an httptest server. configure
// may adjust the defaults before the server is built.
func newTestServer(t *testing.T, configure func(*server.Config)) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testhelpers.TestOrigin}
	if configure != nil {
		configure(cfg)
	}

	srv := server.New(cfg, nil)
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		_ = srv.Shutdown(2 * time.Second)
		ts.Close()
	})
	return srv, ts
}

// joinRoom connects a websocket client to room and waits until the server
// has registered it.
func joinRoom(t *testing.T, srv *server.Server, ts *httptest.Server, room string) *websocket.Conn {
	t.Helper()

	before := len(srv.Registry().Members(room))
	path := "/ws/" + room
	if room == "" {
		path = "/ws"
	}
	conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(ts.URL, path))
	testhelpers.WaitFor(t, 2*time.Second, "client to join "+room, func() bool {
		return len(srv.Registry().Members(room)) == before+1
	})
	return conn
}
