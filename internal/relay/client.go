package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientConfig holds the transport settings of a websocket Client.
type ClientConfig struct {
	// MaxMessageSize is the largest inbound message accepted, in bytes.
	MaxMessageSize int64
	// SendQueue is the number of outbound messages buffered per client.
	SendQueue int
	// PongWait is how long the peer may stay silent before the read fails.
	// Pings are sent at 9/10 of this period.
	PongWait time.Duration
	// WriteWait bounds a single frame write.
	WriteWait time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// Client is a Conn backed by a gorilla websocket. Outbound messages are queued
// and written one frame per message by a dedicated write pump.
type Client struct {
	id   string
	conn *websocket.Conn
	addr string
	user string
	cfg  ClientConfig
	log  *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded websocket connection and starts its write pump.
// addr and user are only used for logging.
func NewClient(conn *websocket.Conn, addr, user string, cfg ClientConfig, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		addr: addr,
		user: user,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueue),
		done: make(chan struct{}),
	}
	c.log = log.With(zap.String("conn", c.id), zap.String("addr", addr))

	conn.SetReadLimit(cfg.MaxMessageSize)
	c.setupReadConnection()
	go c.writePump()
	return c
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Addr returns the remote address the client connected from.
func (c *Client) Addr() string { return c.addr }

// User returns the display name supplied at connection time, if any.
func (c *Client) User() string { return c.user }

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send queues msg for delivery. It blocks while the queue is full until ctx
// ends, in which case the peer is considered unreachable.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.done:
		return sendError(ErrClosed)
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return sendError(ErrClosed)
	case <-ctx.Done():
		return sendError(ctx.Err())
	}
}

// Receive returns the next inbound text or binary message.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, receiveError(ErrClosed)
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, receiveError(err)
	}

	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		c.logReadError(err)
		return nil, receiveError(err)
	}
	return msg, nil
}

// Close sends a close frame, closes the socket and stops the write pump. Only
// the first call has an effect.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !isExpectedCloseError(werr) {
			c.log.Debug("error writing close message", zap.Error(werr))
		}
		err = c.conn.Close()
	})
	return err
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
}

func (c *Client) logReadError(err error) {
	switch {
	case isClosedByUs(c.done):
		c.log.Debug("read stopped after close", zap.Error(err))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Info("client disconnected", zap.Error(err))
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Info("message exceeded maximum size",
			zap.Int64("max", c.cfg.MaxMessageSize), zap.Error(err))
	case isExpectedCloseError(err):
		c.log.Info("client connection closed", zap.Error(err))
	default:
		c.log.Warn("websocket read error", zap.Error(err))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// write writes one frame and returns false if the connection should be closed.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Debug("error setting write deadline", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Info("error writing message", zap.Int("type", messageType), zap.Error(err))
		}
		return false
	}
	return true
}

func isClosedByUs(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection closed")
}
