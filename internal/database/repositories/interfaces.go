package repositories

import (
	"context"
	"time"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
)

// AlertRuleRepository defines alert rule read access. Rules are managed by the
// rule-management API; the trigger engine treats them as read-only.
type AlertRuleRepository interface {
	GetByID(ctx context.Context, id int) (*models.AlertRule, error)
	GetEnabled(ctx context.Context) ([]*models.AlertRule, error)
	GetEnabledByTeam(ctx context.Context, teamID string) ([]*models.AlertRule, error)
	// Ping issues a trivial query against the rule table, used by the
	// manager's health check to verify database reachability.
	Ping(ctx context.Context) error
}

// AlertFilter narrows alert queries
type AlertFilter struct {
	AlertRuleID *int
	Statuses    []models.AlertStatus
	TeamID      string
	DateFrom    *time.Time
}

// AlertRepository defines alert and alert history data access
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	Query(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)
	CountSince(ctx context.Context, ruleID int, since time.Time) (int, error)
	HasOpenForRule(ctx context.Context, ruleID int) (bool, error)
	LatestForRule(ctx context.Context, ruleID int) (*models.Alert, error)
	CreateHistory(ctx context.Context, history *models.AlertHistory) error
}

// FailureStateRepository persists per-rule consecutive breach counters
type FailureStateRepository interface {
	Get(ctx context.Context, ruleID int) (*models.RuleFailureState, error)
	Increment(ctx context.Context, ruleID int) (int, error)
	Clear(ctx context.Context, ruleID int) error
}

// MetricsRepository defines the read surfaces the resolver queries and the
// write surface the collector snapshots into
type MetricsRepository interface {
	// Embedding pipeline reads, scoped to a team and window.
	EmbeddingSuccessRate(ctx context.Context, teamID string, since time.Time) (rate float64, samples int, err error)
	EmbeddingErrorRate(ctx context.Context, teamID string, since time.Time) (rate float64, samples int, err error)
	EmbeddingAvgDuration(ctx context.Context, teamID string, since time.Time) (avgMs float64, samples int, err error)

	// Generic performance metric reads.
	LatestPerformanceValue(ctx context.Context, metricName string, since time.Time) (value float64, found bool, err error)

	// Notification delivery reads.
	NotificationSuccessRate(ctx context.Context, teamID string, since time.Time) (rate float64, samples int, err error)

	// Collector writes.
	RecordPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error
	InsertEmbeddingJobMetric(ctx context.Context, metric *models.EmbeddingJobMetric) error
	InsertNotificationDelivery(ctx context.Context, delivery *models.NotificationDelivery) error
	PrunePerformanceMetrics(ctx context.Context, before time.Time) (int64, error)
}
