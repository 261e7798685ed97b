package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// Guard enforces cooldown and consecutive-failure semantics for alert rules.
// Consecutive breach counters are persisted so they survive restarts.
type Guard struct {
	alerts   repositories.AlertRepository
	failures repositories.FailureStateRepository
	logger   *logrus.Logger
}

// NewGuard creates a guard
func NewGuard(alerts repositories.AlertRepository, failures repositories.FailureStateRepository, logger *logrus.Logger) *Guard {
	return &Guard{
		alerts:   alerts,
		failures: failures,
		logger:   logger,
	}
}

// InCooldown reports whether the rule triggered inside its cooldown window.
// Rules with no cooldown configured are never in cooldown.
func (g *Guard) InCooldown(ctx context.Context, rule *models.AlertRule) (bool, error) {
	if rule.CooldownMinutes <= 0 {
		return false, nil
	}

	since := time.Now().UTC().Add(-rule.Cooldown())
	count, err := g.alerts.CountSince(ctx, rule.ID, since)
	if err != nil {
		return false, fmt.Errorf("cooldown check failed for rule %d: %w", rule.ID, err)
	}

	return count > 0, nil
}

// RecordBreach registers one more consecutive threshold breach and returns
// the updated count
func (g *Guard) RecordBreach(ctx context.Context, ruleID int) (int, error) {
	count, err := g.failures.Increment(ctx, ruleID)
	if err != nil {
		return 0, fmt.Errorf("failed to record breach for rule %d: %w", ruleID, err)
	}

	g.logger.WithFields(logrus.Fields{
		"rule_id":     ruleID,
		"consecutive": count,
	}).Debug("Recorded consecutive threshold breach")

	return count, nil
}

// ClearFailures resets the consecutive breach counter. Called on any cycle
// where the condition does not hold and after every trigger decision.
func (g *Guard) ClearFailures(ctx context.Context, ruleID int) error {
	if err := g.failures.Clear(ctx, ruleID); err != nil {
		return fmt.Errorf("failed to clear breach counter for rule %d: %w", ruleID, err)
	}
	return nil
}
