package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// FailureStateRepository implements repositories.FailureStateRepository
type FailureStateRepository struct {
	db *sqlx.DB
}

// NewFailureStateRepository creates a new FailureStateRepository
func NewFailureStateRepository(db *sqlx.DB) repositories.FailureStateRepository {
	return &FailureStateRepository{db: db}
}

// Get returns the failure state for a rule, nil when no breaches are recorded
func (r *FailureStateRepository) Get(ctx context.Context, ruleID int) (*models.RuleFailureState, error) {
	query := `
		SELECT alert_rule_id, consecutive_count, updated_at
		FROM alert_rule_failures WHERE alert_rule_id = ?
	`

	var state models.RuleFailureState
	err := r.db.GetContext(ctx, &state, query, ruleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure state for rule %d: %w", ruleID, err)
	}

	return &state, nil
}

// Increment records one more consecutive breach and returns the new count
func (r *FailureStateRepository) Increment(ctx context.Context, ruleID int) (int, error) {
	query := `
		INSERT INTO alert_rule_failures (alert_rule_id, consecutive_count, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(alert_rule_id) DO UPDATE SET
			consecutive_count = consecutive_count + 1,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, ruleID, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to increment failure state for rule %d: %w", ruleID, err)
	}

	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT consecutive_count FROM alert_rule_failures WHERE alert_rule_id = ?`, ruleID)
	if err != nil {
		return 0, fmt.Errorf("failed to read failure state for rule %d: %w", ruleID, err)
	}

	return count, nil
}

// Clear resets the consecutive breach counter for a rule
func (r *FailureStateRepository) Clear(ctx context.Context, ruleID int) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM alert_rule_failures WHERE alert_rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("failed to clear failure state for rule %d: %w", ruleID, err)
	}
	return nil
}
