package progress

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Client is one websocket connection subscribed to a single run's events:
// a hub-owned connection with its own buffered send channel and a write
// pump goroutine.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event
	runID string
}

// NewClient wraps conn as a Hub client subscribed to runID's events.
func NewClient(hub *Hub, conn *websocket.Conn, runID string) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan Event, sendBufferSize), runID: runID}
}

// Serve registers the client and runs its write pump until the connection
// closes or the hub unregisters it; call in its own goroutine per
// connection. Clients are pure event subscribers, not command senders, so
// only the write side is needed.
func (c *Client) Serve() {
	c.hub.Register(c)
	defer c.hub.Unregister(c)
	c.writePump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
