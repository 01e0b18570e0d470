package ws

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

func (h *Hub) sendPing(c *Connection) error {
	if c.Conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Hub) handlePong(c *Connection) {
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// sendClose tells the peer we are going away. Errors are irrelevant: the
// connection is torn down either way.
func (h *Hub) sendClose(c *Connection, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
