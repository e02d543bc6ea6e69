package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, stores a scoped logger under
// "logger" in the gin context and logs the outcome.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)

		reqLogger := logger.With(zap.String("requestId", reqID))
		c.Set("logger", reqLogger)
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", getClientIP(c)),
		}
		if sid := c.Param("id"); sid != "" {
			fields = append(fields, zap.String("session", sid))
		}
		if c.Writer.Status() >= 500 {
			reqLogger.Error("request failed", fields...)
			return
		}
		reqLogger.Info("request", fields...)
	}
}
