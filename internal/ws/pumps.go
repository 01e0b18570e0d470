package ws

import (
	"fmt"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/codec"
	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 8192
)

// ReadPump drains inbound frames so control frames (pong, close) get
// processed, and cancels the stream when the peer goes away.
func (h *Hub) ReadPump(c *Connection) {
	defer close(c.readerDone)
	defer c.cancel()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	h.handlePong(c)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Info("Stream peer read error", "stream", c.ID, "remote", c.RemoteAddr, "err", err)
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// tickLoop samples, encodes and writes one snapshot per interval. The next
// wait starts only after the previous write returned, so a slow peer
// stretches the spacing instead of building a queue.
func (h *Hub) tickLoop(c *Connection, sampler Sampler) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	tick := time.NewTimer(0)
	defer tick.Stop()

	for {
		select {
		case <-c.Done():
			h.sendClose(c, "stream closed")
			return nil

		case <-ping.C:
			if err := h.sendPing(c); err != nil {
				h.metrics.SendFailed()
				logger.Log.Error("Ping failed", "stream", c.ID, "remote", c.RemoteAddr, "err", err)
				return fmt.Errorf("%w: ping %s: %v", errs.ErrTransport, c.RemoteAddr, err)
			}

		case <-tick.C:
			start := time.Now()
			snap := sampler.Sample(c.ctx)
			h.metrics.ObserveSample(time.Since(start).Seconds())

			data, err := codec.Encode(snap)
			if err != nil {
				logger.Log.Error("Failed to encode snapshot", "stream", c.ID, "err", err)
				tick.Reset(h.interval)
				continue
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.metrics.SendFailed()
				logger.Log.Error("failed to send message", "stream", c.ID, "remote", c.RemoteAddr, "err", err)
				return fmt.Errorf("%w: send to %s: %v", errs.ErrTransport, c.RemoteAddr, err)
			}
			h.metrics.SnapshotSent()
			logger.Log.Debug("Sent update", "stream", c.ID, "bytes", len(data))
			tick.Reset(h.interval)
		}
	}
}
