package handler

import (
	"net/http"

	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a deep health check handler that pings all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, allHealthy := ports.CheckAll(c.Request.Context(), checkers...)

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
