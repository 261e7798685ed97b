package models

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// RawJSON is a JSON document stored in a nullable TEXT column. A NULL column
// scans to a nil slice instead of failing the row.
type RawJSON []byte

// Value implements driver.Valuer. An empty document is stored as NULL.
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner
func (j *RawJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", src)
	}
	return nil
}

// MarshalJSON renders the stored document verbatim, nil as JSON null
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw document as-is
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// MetricSource identifies which metric store a rule reads from
type MetricSource string

const (
	SourceEmbeddingMetrics    MetricSource = "embedding_metrics"
	SourcePerformanceMetrics  MetricSource = "performance_metrics"
	SourceSystemHealth        MetricSource = "system_health"
	SourceNotificationMetrics MetricSource = "notification_metrics"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusSuppressed   AlertStatus = "suppressed"
)

// AlertRule is a persisted alerting rule. Rules are created and edited by the
// rule-management API; the trigger engine only reads them.
type AlertRule struct {
	ID                          int            `json:"id" db:"id"`
	Name                        string         `json:"name" db:"name"`
	Description                 sql.NullString `json:"description,omitempty" db:"description"`
	Enabled                     bool           `json:"enabled" db:"enabled"`
	MetricSource                MetricSource   `json:"metric_source" db:"metric_source"`
	MetricName                  string         `json:"metric_name" db:"metric_name"`
	ThresholdValue              float64        `json:"threshold_value" db:"threshold_value"`
	ThresholdOperator           string         `json:"threshold_operator" db:"threshold_operator"`
	ThresholdUnit               sql.NullString `json:"threshold_unit,omitempty" db:"threshold_unit"`
	EvaluationWindowMinutes     int            `json:"evaluation_window_minutes" db:"evaluation_window_minutes"`
	CooldownMinutes             int            `json:"cooldown_minutes" db:"cooldown_minutes"`
	ConsecutiveFailuresRequired int            `json:"consecutive_failures_required" db:"consecutive_failures_required"`
	MaxAlertsPerHour            int            `json:"max_alerts_per_hour" db:"max_alerts_per_hour"`
	Severity                    AlertSeverity  `json:"severity" db:"severity"`
	TeamID                      string         `json:"team_id" db:"team_id"`
	CreatedAt                   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time      `json:"updated_at" db:"updated_at"`
}

// EvaluationWindow returns the rule's lookback window as a duration
func (r *AlertRule) EvaluationWindow() time.Duration {
	return time.Duration(r.EvaluationWindowMinutes) * time.Minute
}

// Cooldown returns the rule's cooldown period as a duration
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Alert is a record created when a rule fires. Status transitions after
// creation are driven by operators or the alerting API, never by the engine.
type Alert struct {
	ID                string        `json:"id" db:"id"`
	AlertRuleID       int           `json:"alert_rule_id" db:"alert_rule_id"`
	Title             string        `json:"title" db:"title"`
	Description       string        `json:"description" db:"description"`
	Severity          AlertSeverity `json:"severity" db:"severity"`
	MetricName        string        `json:"metric_name" db:"metric_name"`
	MetricValue       float64       `json:"metric_value" db:"metric_value"`
	ThresholdValue    float64       `json:"threshold_value" db:"threshold_value"`
	ThresholdOperator string        `json:"threshold_operator" db:"threshold_operator"`
	Context           RawJSON       `json:"context,omitempty" db:"context"`
	TeamID            string        `json:"team_id" db:"team_id"`
	Status            AlertStatus   `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// IsOpen reports whether the alert still blocks re-triggering of its rule
func (a *Alert) IsOpen() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// AlertHistory is an append-only audit entry for an alert lifecycle event
type AlertHistory struct {
	ID        int       `json:"id" db:"id"`
	AlertID   string    `json:"alert_id" db:"alert_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Metadata  RawJSON   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RuleFailureState tracks consecutive threshold breaches per rule between
// evaluation cycles
type RuleFailureState struct {
	AlertRuleID      int       `json:"alert_rule_id" db:"alert_rule_id"`
	ConsecutiveCount int       `json:"consecutive_count" db:"consecutive_count"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// EmbeddingJobMetric is one embedding pipeline job outcome, written by the
// extraction pipeline and read by the metric resolver
type EmbeddingJobMetric struct {
	ID         int             `json:"id" db:"id"`
	TeamID     string          `json:"team_id" db:"team_id"`
	Status     string          `json:"status" db:"status"`
	DurationMs sql.NullFloat64 `json:"duration_ms,omitempty" db:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// PerformanceMetric is a single named metric sample recorded by the collector
type PerformanceMetric struct {
	ID          int            `json:"id" db:"id"`
	TeamID      sql.NullString `json:"team_id,omitempty" db:"team_id"`
	MetricName  string         `json:"metric_name" db:"metric_name"`
	MetricValue float64        `json:"metric_value" db:"metric_value"`
	RecordedAt  time.Time      `json:"recorded_at" db:"recorded_at"`
}

// NotificationDelivery is one notification delivery outcome, written by the
// delivery system and read by the metric resolver
type NotificationDelivery struct {
	ID        int       `json:"id" db:"id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	Channel   string    `json:"channel" db:"channel"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
