package routers

import (
	"github.com/The-Promised-Neverland/kiro/internal/api/handlers"
	"github.com/The-Promised-Neverland/kiro/internal/api/middleware"
	"github.com/The-Promised-Neverland/kiro/internal/metrics"
	"github.com/gin-gonic/gin"
)

type Router struct {
	Handler   *handlers.Handler
	WSHandler *handlers.WebSocketHandler
	Metrics   *metrics.Metrics
	WSPath    string
}

func NewRouter(handler *handlers.Handler, wsh *handlers.WebSocketHandler, m *metrics.Metrics, wsPath string) *Router {
	if wsPath == "" {
		wsPath = "/"
	}
	return &Router{
		Handler:   handler,
		WSHandler: wsh,
		Metrics:   m,
		WSPath:    wsPath,
	}
}

func (rtr *Router) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", rtr.Handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(rtr.Metrics.Handler()))
	router.GET(rtr.WSPath, rtr.WSHandler.UpgradeHandler) // Upgrade to websocket request

	return router
}
