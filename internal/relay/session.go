package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// State is the lifecycle stage of a Session.
type State int32

// Session states. Closed is terminal.
const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig controls how sessions forward inbound messages.
type SessionConfig struct {
	// Echo delivers a sender's messages back to the sender as well.
	Echo bool
	// RateLimit bounds inbound messages per connection. The zero value
	// disables limiting.
	RateLimit RateLimit
}

// Session is the control loop of one connection inside one room.
type Session struct {
	room    string
	conn    Conn
	limiter *rate.Limiter

	mu    sync.Mutex
	state State
}

// Room returns the room the session was opened for.
func (s *Session) Room() string { return s.room }

// Conn returns the session's connection.
func (s *Session) Conn() Conn { return s.conn }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Sessions runs and tracks the sessions of all live connections.
type Sessions struct {
	registry *Registry
	fanout   *Fanout
	cfg      SessionConfig
	log      *zap.Logger

	mu      sync.Mutex
	live    map[string]*Session
	closing bool
	wg      sync.WaitGroup
}

// NewSessions creates a session runner that joins connections to registry and
// forwards their messages through fanout.
func NewSessions(registry *Registry, fanout *Fanout, cfg SessionConfig, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		registry: registry,
		fanout:   fanout,
		cfg:      cfg,
		log:      log,
		live:     make(map[string]*Session),
	}
}

// Count returns the number of running sessions.
func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Session returns the running session of the connection with the given ID.
func (s *Sessions) Session(connID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.live[connID]
	return sess, ok
}

// Serve joins conn to room and forwards every message it receives to the
// room until the connection fails, is closed, or ctx is cancelled. On return
// conn has left the room and is closed. The returned error is the one that
// ended the loop; it matches ErrReceive unless the runner was shutting down.
func (s *Sessions) Serve(ctx context.Context, room string, conn Conn) error {
	sess := &Session{
		room:    room,
		conn:    conn,
		limiter: newRateLimiter(s.cfg.RateLimit),
		state:   StateConnecting,
	}
	if !s.track(sess) {
		_ = conn.Close()
		return ErrClosed
	}
	defer s.untrack(sess)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.join(sess)
	err := s.loop(ctx, sess)
	s.close(sess, err)
	return err
}

func (s *Sessions) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.live[sess.conn.ID()] = sess
	s.wg.Add(1)
	return true
}

func (s *Sessions) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.live, sess.conn.ID())
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Sessions) join(sess *Session) {
	s.registry.Join(sess.room, sess.conn)
	sess.setState(StateJoined)
	s.log.Info("connection joined room",
		zap.String("room", sess.room),
		zap.String("conn", sess.conn.ID()),
		zap.Int("members", len(s.registry.Members(sess.room))))
}

func (s *Sessions) loop(ctx context.Context, sess *Session) error {
	// A sender going away must not cut short deliveries to everyone else.
	sendCtx := context.WithoutCancel(ctx)

	var exclude Conn
	if !s.cfg.Echo {
		exclude = sess.conn
	}

	for {
		msg, err := sess.conn.Receive(ctx)
		if err != nil {
			return err
		}

		if sess.limiter != nil && !sess.limiter.Allow() {
			metrics.Dropped.WithLabelValues(metrics.ReasonRateLimit).Inc()
			s.log.Info("rate limit exceeded; discarding message",
				zap.String("room", sess.room),
				zap.String("conn", sess.conn.ID()),
				zap.Int("burst", s.cfg.RateLimit.Burst),
				zap.Duration("interval", s.cfg.RateLimit.RefillInterval))
			continue
		}

		metrics.MessagesReceived.Inc()
		s.fanout.Broadcast(sendCtx, sess.room, msg, exclude)
	}
}

func (s *Sessions) close(sess *Session, cause error) {
	s.registry.Leave(sess.room, sess.conn)
	if err := sess.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Warn("error closing connection",
			zap.String("conn", sess.conn.ID()),
			zap.Error(err))
	}
	sess.setState(StateClosed)

	fields := []zap.Field{
		zap.String("room", sess.room),
		zap.String("conn", sess.conn.ID()),
		zap.Error(cause),
	}
	if cause == nil || errors.Is(cause, ErrClosed) || isExpectedCloseError(cause) {
		s.log.Info("connection left room", fields...)
		return
	}
	s.log.Info("connection left room after receive error", fields...)
}

// Shutdown closes every live connection, refuses new sessions and waits for
// running sessions to finish. It returns context.DeadlineExceeded if they do
// not finish within timeout.
func (s *Sessions) Shutdown(timeout time.Duration) error {
	s.log.Info("shutting down sessions")

	s.mu.Lock()
	s.closing = true
	conns := make([]Conn, 0, len(s.live))
	for _, sess := range s.live {
		conns = append(conns, sess.conn)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("error closing connection during shutdown",
				zap.String("conn", c.ID()),
				zap.Error(err))
		}
	}
	s.log.Info("closed connections", zap.Int("count", len(conns)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("session shutdown completed")
		return nil
	case <-time.After(timeout):
		s.log.Warn("session shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
