package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
	"github.com/receiptwise/receiptwise-backend-go/pkg/utils"
)

// GetAlerts lists alerts matching the query filters: status (repeatable),
// rule_id, team_id, hours
func (h *Handlers) GetAlerts(c *gin.Context) {
	filter := repositories.AlertFilter{
		TeamID: c.Query("team_id"),
	}

	for _, raw := range c.QueryArray("status") {
		status := models.AlertStatus(raw)
		switch status {
		case models.StatusActive, models.StatusAcknowledged, models.StatusResolved, models.StatusSuppressed:
			filter.Statuses = append(filter.Statuses, status)
		default:
			utils.SendError(c, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}

	if raw := c.Query("rule_id"); raw != "" {
		ruleID, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, "Invalid rule_id parameter")
			return
		}
		filter.AlertRuleID = &ruleID
	}

	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			utils.SendError(c, http.StatusBadRequest, "Invalid hours parameter")
			return
		}
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		filter.DateFrom = &since
	}

	alerts, err := h.repos.Alert.Query(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query alerts")
		utils.SendError(c, http.StatusInternalServerError, "Failed to query alerts")
		return
	}

	utils.SendSuccess(c, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
