// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the room listing and the chat pages.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// WebSocketHandler upgrades GET /ws/:room and runs the connection's session
// until it ends. The optional user query parameter is only used for logging.
func (s *Server) WebSocketHandler(c *gin.Context) {
	room := c.Param("room")
	user := c.Query("user")

	client, err := s.Upgrade(c.Writer, c.Request, room, user)
	if err != nil {
		var joinErr *relay.JoinError
		if errors.As(err, &joinErr) {
			s.log.Info("websocket upgrade failed",
				zap.String("room", joinErr.Room),
				zap.String("addr", c.Request.RemoteAddr),
				zap.Error(joinErr.Err))
		}
		return
	}

	s.log.Debug("websocket connected",
		zap.String("room", room),
		zap.String("user", user),
		zap.String("conn", client.ID()),
		zap.String("addr", client.Addr()))

	_ = s.sessions.Serve(c.Request.Context(), room, client)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "roomrelay is running!")
}

// RoomsHandler lists active rooms and their member counts.
func (s *Server) RoomsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.registry.Rooms()})
}

// IndexHandler serves the landing page where a room and user name are chosen.
func IndexHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// ChatPageHandler serves the chat page for /:room/:user.
func ChatPageHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "chat.html", gin.H{
		"Room": c.Param("room"),
		"User": c.Param("user"),
	})
}
