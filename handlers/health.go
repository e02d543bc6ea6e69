package handlers

import (
	"net/http"

	"daypass/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last dependency check. The first request before
// any check has run triggers one.
func HealthHandler(monitor *utils.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := monitor.Status()
		if status.CheckedAt.IsZero() {
			status = monitor.Check(c.Request.Context())
		}
		code := http.StatusOK
		state := "ok"
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(code, gin.H{"status": state, "checks": status})
	}
}
