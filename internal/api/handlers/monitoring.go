package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/alerting"
	"github.com/receiptwise/receiptwise-backend-go/internal/websocket"
	"github.com/receiptwise/receiptwise-backend-go/pkg/utils"
)

// GetMonitoringStatus returns the manager's status report
func (h *Handlers) GetMonitoringStatus(c *gin.Context) {
	utils.SendSuccess(c, h.manager.GetStatus())
}

// StartMonitoring starts the monitoring system
func (h *Handlers) StartMonitoring(c *gin.Context) {
	if err := h.manager.Start(c.Request.Context()); err != nil {
		utils.SendError(c, http.StatusConflict, err.Error())
		return
	}

	h.wsHub.BroadcastToAll(websocket.MonitoringStatusMessage("started", nil))
	utils.SendSuccess(c, gin.H{"message": "Monitoring system started"})
}

// StopMonitoring stops the monitoring system
func (h *Handlers) StopMonitoring(c *gin.Context) {
	if err := h.manager.Stop(); err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.BroadcastToAll(websocket.MonitoringStatusMessage("stopped", nil))
	utils.SendSuccess(c, gin.H{"message": "Monitoring system stopped"})
}

// RestartMonitoring restarts the monitoring system
func (h *Handlers) RestartMonitoring(c *gin.Context) {
	if err := h.manager.Restart(c.Request.Context()); err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.BroadcastToAll(websocket.MonitoringStatusMessage("restarted", nil))
	utils.SendSuccess(c, gin.H{"message": "Monitoring system restarted"})
}

// ForceEvaluation runs a full evaluation cycle immediately and returns the
// per-rule results
func (h *Handlers) ForceEvaluation(c *gin.Context) {
	results, err := h.manager.ForceEvaluation(c.Request.Context())
	if err != nil {
		if errors.Is(err, alerting.ErrCycleInProgress) {
			utils.SendError(c, http.StatusConflict, err.Error())
			return
		}
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// ForceRuleEvaluation evaluates one rule immediately
func (h *Handlers) ForceRuleEvaluation(c *gin.Context) {
	ruleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	result, err := h.manager.ForceRuleEvaluation(c.Request.Context(), ruleID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		utils.SendError(c, http.StatusNotFound, "Alert rule not found")
		return
	}

	utils.SendSuccess(c, result)
}

// GetRecentActivity summarizes alert activity over the last N hours
// (default 24)
func (h *Handlers) GetRecentActivity(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.SendError(c, http.StatusBadRequest, "Invalid hours parameter")
			return
		}
		hours = parsed
	}

	summary, err := h.manager.GetRecentActivity(c.Request.Context(), hours)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, summary)
}

// GetMonitoringConfig returns the active monitoring configuration
func (h *Handlers) GetMonitoringConfig(c *gin.Context) {
	utils.SendSuccess(c, h.manager.GetConfig())
}

// UpdateMonitoringConfig replaces the monitoring configuration. Changes take
// effect on the next restart.
func (h *Handlers) UpdateMonitoringConfig(c *gin.Context) {
	var cfg config.MonitoringConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid configuration payload")
		return
	}

	h.manager.UpdateConfig(cfg)
	utils.SendSuccess(c, gin.H{
		"message": "Configuration updated, restart monitoring to apply",
		"config":  cfg,
	})
}
