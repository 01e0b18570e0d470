package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one client stream. The tick loop is its only writer of
// data frames; ReadPump is its only reader.
type Connection struct {
	ID          string
	RemoteAddr  string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	readerDone  chan struct{}
}

func NewConnection(ctx context.Context, id string, conn *websocket.Conn) *Connection {
	cctx, cancel := context.WithCancel(ctx)
	return &Connection{
		ID:          id,
		RemoteAddr:  conn.RemoteAddr().String(),
		Conn:        conn,
		ConnectedAt: time.Now(),
		ctx:         cctx,
		cancel:      cancel,
		readerDone:  make(chan struct{}),
	}
}

// Done is closed when the peer goes away or the hub shuts the stream down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ReaderDone is closed once ReadPump has returned.
func (c *Connection) ReaderDone() <-chan struct{} {
	return c.readerDone
}
