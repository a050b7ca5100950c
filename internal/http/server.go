// Package http provides the HTTP server hosting the WebSocket endpoint
// and operational routes.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codesync/server/internal/hub"
	"github.com/codesync/server/internal/presence"
	"github.com/codesync/server/internal/ws"
)

// Server is the HTTP server for the sync service.
type Server struct {
	echo     *echo.Echo
	hub      *hub.Hub
	registry *presence.Registry
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(h *hub.Hub, reg *presence.Registry, wsServer *ws.Server) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		hub:      h,
		registry: reg,
	}

	// Register routes
	e.GET("/health", s.handleHealth)
	e.GET("/ws", wsServer.HandleWebSocket)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.hub.ConnectionCount(),
		"rooms":       s.hub.RoomCount(),
		"sessions":    s.registry.Count(),
	})
}
