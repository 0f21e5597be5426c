// Package server wires the relay core to HTTP: it owns the registry, fan-out
// engine and session runner, and upgrades incoming requests into sessions.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Server holds the relay core and its HTTP-facing dependencies.
type Server struct {
	cfg      *Config
	log      *zap.Logger
	registry *relay.Registry
	fanout   *relay.Fanout
	sessions *relay.Sessions
	upgrader websocket.Upgrader
}

// New creates a Server from cfg. A nil cfg uses NewConfig defaults and a nil
// log discards output.
func New(cfg *Config, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg = sanitizeConfig(cfg)
	if log == nil {
		log = zap.NewNop()
	}

	registry := relay.NewRegistry()
	fanout := relay.NewFanout(registry, cfg.SendTimeout, log.Named("fanout"))
	origins := newOriginPolicy(cfg.AllowedOrigins, log.Named("origin"))

	return &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		fanout:   fanout,
		sessions: relay.NewSessions(registry, fanout, cfg.SessionConfig(), log.Named("session")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() *Config { return s.cfg }

// Registry returns the room registry.
func (s *Server) Registry() *relay.Registry { return s.registry }

// Fanout returns the fan-out engine.
func (s *Server) Fanout() *relay.Fanout { return s.fanout }

// Sessions returns the session runner.
func (s *Server) Sessions() *relay.Sessions { return s.sessions }

// Upgrade turns r into a websocket Client destined for room. On failure it
// returns a *relay.JoinError and the upgrader has already replied to the peer.
func (s *Server) Upgrade(w http.ResponseWriter, r *http.Request, room, user string) (*relay.Client, error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, &relay.JoinError{Room: room, Err: err}
	}
	return relay.NewClient(conn, r.RemoteAddr, user, s.cfg.ClientConfig(), s.log.Named("client")), nil
}

// Shutdown closes every live connection and waits up to timeout for their
// sessions to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.sessions.Shutdown(timeout)
}
