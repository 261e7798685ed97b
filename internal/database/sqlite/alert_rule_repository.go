package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// AlertRuleRepository implements repositories.AlertRuleRepository
type AlertRuleRepository struct {
	db *sqlx.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository
func NewAlertRuleRepository(db *sqlx.DB) repositories.AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

const alertRuleColumns = `
	id, name, description, enabled, metric_source, metric_name,
	threshold_value, threshold_operator, threshold_unit,
	evaluation_window_minutes, cooldown_minutes,
	consecutive_failures_required, max_alerts_per_hour,
	severity, team_id, created_at, updated_at
`

// GetByID retrieves a single alert rule, nil when not found
func (r *AlertRuleRepository) GetByID(ctx context.Context, id int) (*models.AlertRule, error) {
	query := `SELECT` + alertRuleColumns + `FROM alert_rules WHERE id = ?`

	var rule models.AlertRule
	err := r.db.GetContext(ctx, &rule, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule %d: %w", id, err)
	}

	return &rule, nil
}

// GetEnabled retrieves all enabled alert rules
func (r *AlertRuleRepository) GetEnabled(ctx context.Context) ([]*models.AlertRule, error) {
	query := `SELECT` + alertRuleColumns + `FROM alert_rules WHERE enabled = 1 ORDER BY id`

	var rules []*models.AlertRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}

	return rules, nil
}

// GetEnabledByTeam retrieves enabled alert rules scoped to one team
func (r *AlertRuleRepository) GetEnabledByTeam(ctx context.Context, teamID string) ([]*models.AlertRule, error) {
	query := `SELECT` + alertRuleColumns + `FROM alert_rules WHERE enabled = 1 AND team_id = ? ORDER BY id`

	var rules []*models.AlertRule
	if err := r.db.SelectContext(ctx, &rules, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules for team %s: %w", teamID, err)
	}

	return rules, nil
}

// Ping verifies database reachability with a trivial query
func (r *AlertRuleRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
