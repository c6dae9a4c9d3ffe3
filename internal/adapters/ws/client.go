package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentarena/arena/internal/application/broadcast"
	"github.com/agentarena/arena/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// controlFrame is what observers send us: channel subscription changes.
// Anything else on the wire is ignored.
type controlFrame struct {
	Subscribe   []string `json:"subscribe,omitempty"`
	Unsubscribe []string `json:"unsubscribe,omitempty"`
}

func parseControl(raw []byte) (controlFrame, error) {
	var frame controlFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return controlFrame{}, fmt.Errorf("ws: parse control frame: %w", err)
	}
	return frame, nil
}

// Client is one observer connection registered on the hub. Writes are
// serialized under a mutex because the hub and the ping loop both
// write; reads happen only in readLoop.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *broadcast.Hub

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// Deliver pushes one event to the observer. An error here tells the
// hub to evict the client; the read loop notices the dead connection
// and finishes the cleanup.
func (c *Client) Deliver(_ context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ws: marshal event: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: write to %s: %w", c.id, err)
	}
	return nil
}

// readLoop consumes control frames until the connection dies, then
// disconnects the client from the hub.
func (c *Client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("observer read failed", "client_id", c.id, "error", err)
			}
			return
		}

		frame, err := parseControl(raw)
		if err != nil {
			slog.Debug("ignoring malformed control frame", "client_id", c.id, "error", err)
			continue
		}
		for _, channel := range frame.Subscribe {
			c.hub.Subscribe(c.id, channel)
		}
		for _, channel := range frame.Unsubscribe {
			c.hub.Unsubscribe(c.id, channel)
		}
	}
}

// pingLoop keeps the connection's read deadline fed.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.Disconnect(c.id)
		c.conn.Close()
		slog.Debug("observer disconnected", "client_id", c.id)
	})
}
