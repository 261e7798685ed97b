package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// AlertRepository implements repositories.AlertRepository
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(db *sqlx.DB) repositories.AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, alert_rule_id, title, description, severity, metric_name,
	metric_value, threshold_value, threshold_operator, context,
	team_id, status, created_at
`

// Create inserts a new alert. Status defaults to active when unset.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = models.StatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.AlertRuleID, alert.Title, alert.Description,
		alert.Severity, alert.MetricName, alert.MetricValue,
		alert.ThresholdValue, alert.ThresholdOperator, alert.Context,
		alert.TeamID, alert.Status, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert for rule %d: %w", alert.AlertRuleID, err)
	}

	return nil
}

// Query returns alerts matching the filter, newest first
func (r *AlertRepository) Query(ctx context.Context, filter repositories.AlertFilter) ([]*models.Alert, error) {
	query := `SELECT` + alertColumns + `FROM alerts WHERE 1=1`
	args := []interface{}{}

	if filter.AlertRuleID != nil {
		query += ` AND alert_rule_id = ?`
		args = append(args, *filter.AlertRuleID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if filter.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, filter.TeamID)
	}
	if filter.DateFrom != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.DateFrom)
	}

	query += ` ORDER BY created_at DESC`

	var alerts []*models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	return alerts, nil
}

// CountSince counts alerts created for a rule at or after the given time
func (r *AlertRepository) CountSince(ctx context.Context, ruleID int, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE alert_rule_id = ? AND created_at >= ?`

	var count int
	if err := r.db.GetContext(ctx, &count, query, ruleID, since); err != nil {
		return 0, fmt.Errorf("failed to count alerts for rule %d: %w", ruleID, err)
	}

	return count, nil
}

// HasOpenForRule reports whether an active or acknowledged alert exists for
// the rule. This is the engine's dedup check.
func (r *AlertRepository) HasOpenForRule(ctx context.Context, ruleID int) (bool, error) {
	query := `
		SELECT COUNT(*) FROM alerts
		WHERE alert_rule_id = ? AND status IN (?, ?)
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, ruleID, models.StatusActive, models.StatusAcknowledged)
	if err != nil {
		return false, fmt.Errorf("failed to check open alerts for rule %d: %w", ruleID, err)
	}

	return count > 0, nil
}

// LatestForRule returns the most recent alert for a rule, nil when none exists
func (r *AlertRepository) LatestForRule(ctx context.Context, ruleID int) (*models.Alert, error) {
	query := `SELECT` + alertColumns + `FROM alerts WHERE alert_rule_id = ? ORDER BY created_at DESC LIMIT 1`

	var alert models.Alert
	err := r.db.GetContext(ctx, &alert, query, ruleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest alert for rule %d: %w", ruleID, err)
	}

	return &alert, nil
}

// CreateHistory appends an alert history entry
func (r *AlertRepository) CreateHistory(ctx context.Context, history *models.AlertHistory) error {
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alert_history (alert_id, event_type, metadata, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		history.AlertID, history.EventType, history.Metadata, history.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert history for alert %s: %w", history.AlertID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted history ID: %w", err)
	}
	history.ID = int(id)

	return nil
}
