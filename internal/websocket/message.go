package websocket

import (
	"encoding/json"
	"time"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
)

// Message types pushed to connected clients
const (
	MessageTypeAlertCreated     = "alert_created"
	MessageTypeMonitoringStatus = "monitoring_status"
	MessageTypeSystemStatus     = "system_status"
	MessageTypeConnection       = "connection"
	MessageTypeHeartbeat        = "heartbeat"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	m.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(m)
	return data
}

// AlertCreatedMessage builds the push message for a newly created alert
func AlertCreatedMessage(alert *models.Alert, rule *models.AlertRule) Message {
	return Message{
		Type: MessageTypeAlertCreated,
		Data: map[string]interface{}{
			"alert_id":        alert.ID,
			"rule_id":         alert.AlertRuleID,
			"rule_name":       rule.Name,
			"title":           alert.Title,
			"description":     alert.Description,
			"severity":        string(alert.Severity),
			"metric_name":     alert.MetricName,
			"metric_value":    alert.MetricValue,
			"threshold_value": alert.ThresholdValue,
			"team_id":         alert.TeamID,
			"created_at":      alert.CreatedAt.UTC(),
		},
	}
}

// MonitoringStatusMessage creates a message for monitoring lifecycle changes
func MonitoringStatusMessage(status string, details map[string]interface{}) Message {
	return Message{
		Type: MessageTypeMonitoringStatus,
		Data: map[string]interface{}{
			"status":  status, // "started", "stopped", "restarted"
			"details": details,
		},
	}
}

// SystemStatusMessage creates a message for system status updates
func SystemStatusMessage(status string, details map[string]interface{}) Message {
	return Message{
		Type: MessageTypeSystemStatus,
		Data: map[string]interface{}{
			"status":  status,
			"details": details,
		},
	}
}
