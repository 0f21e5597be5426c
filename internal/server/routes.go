// Package server wires HTTP handlers into a gin engine for the relay
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/web"
)

// SetupRoutes configures and returns the gin engine with all application
// routes: pages, static assets, the websocket endpoint, room listing, health
// and metrics.
func (s *Server) SetupRoutes() *gin.Engine {
	if s.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(s.log.Named("http")))
	r.SetHTMLTemplate(web.Templates())
	r.StaticFS("/static", http.FS(web.Static()))

	r.GET("/healthz", HealthHandler)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/api/rooms", s.RoomsHandler)

	r.GET("/ws", s.WebSocketHandler)
	r.GET("/ws/:room", s.WebSocketHandler)

	r.GET("/", IndexHandler)
	r.GET("/:room/:user", ChatPageHandler)
	return r
}
