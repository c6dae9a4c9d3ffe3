// Package ws exposes the broadcast hub to live observers over
// websockets. An observer connects, sends subscribe/unsubscribe
// control frames for the channels it wants (match:<id>, agent:<id>,
// leaderboard) and receives every event published on them as JSON.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentarena/arena/internal/application/broadcast"
)

// Server upgrades observer connections and registers them on the hub.
type Server struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewServer builds the observer endpoint over hub.
func NewServer(hub *broadcast.Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Observers are read-only consumers of public match state.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and hands the connection to a Client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &Client{
		id:   uuid.New().String(),
		conn: conn,
		hub:  s.hub,
		done: make(chan struct{}),
	}
	s.hub.Connect(c.id, c)
	slog.Debug("observer connected", "client_id", c.id, "remote", r.RemoteAddr)

	go c.pingLoop()
	go c.readLoop()
}
