package handlers

import (
	"errors"
	"net/http"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/ws"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	Hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// UpgradeHandler upgrades the request and serves the stream on the
// handler goroutine until it ends.
func (wsh *WebSocketHandler) UpgradeHandler(c *gin.Context) {
	conn, err := wsh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade WebSocket", "remote", c.ClientIP(), "err", err)
		return
	}
	err = wsh.Hub.Serve(c.Request.Context(), conn)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrTransport):
		logger.Log.Warn("Stream ended by transport failure", "remote", c.ClientIP(), "err", err)
	default:
		logger.Log.Warn("Stream rejected", "remote", c.ClientIP(), "err", err)
	}
}
