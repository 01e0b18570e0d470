package handlers

import (
	"net/http"

	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/internal/ws"
	"github.com/The-Promised-Neverland/kiro/pkg/system"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Hub *ws.Hub
}

func NewHandler(hub *ws.Hub) *Handler {
	return &Handler{Hub: hub}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthCheck{
		Status:  "Healthy",
		Uptime:  system.Uptime(),
		Streams: h.Hub.Active(),
	})
}
