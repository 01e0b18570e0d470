package middleware

import (
	"time"

	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per HTTP request through the shared slog
// logger. Upgraded streams are logged when the stream ends.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"duration", time.Since(start).String(),
		)
	}
}
