package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/receiptwise/receiptwise-backend-go/pkg/utils"
)

// Health returns service health including database reachability and the
// monitoring system state
func (h *Handlers) Health(c *gin.Context) {
	start := time.Now()
	dbHealthy := true
	if err := h.repos.AlertRule.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		h.logger.WithError(err).Error("Health check database ping failed")
	}
	dbLatency := time.Since(start)

	payload := gin.H{
		"status":             "healthy",
		"database":           dbHealthy,
		"database_latency":   dbLatency.String(),
		"monitoring_running": h.manager.IsRunning(),
		"uptime":             h.manager.GetUptime().Round(time.Second).String(),
		"websocket_clients":  h.wsHub.GetClientCount(),
	}

	if !dbHealthy {
		payload["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, payload)
		return
	}

	utils.SendSuccess(c, payload)
}
