package sqlite

import (
	"context"
	"testing"
)

func TestAlertRuleRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRuleRepository(db)
	ctx := context.Background()

	insert := `
		INSERT INTO alert_rules
			(name, enabled, metric_source, metric_name, threshold_value, threshold_operator, team_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	rows := []struct {
		name    string
		enabled bool
		teamID  string
	}{
		{"low success rate", true, "team-1"},
		{"slow embeddings", true, "team-2"},
		{"disabled rule", false, "team-1"},
	}
	for _, row := range rows {
		if _, err := db.Exec(insert, row.name, row.enabled, "embedding_metrics", "success_rate", 90, "<", row.teamID); err != nil {
			t.Fatalf("Failed to seed rule: %v", err)
		}
	}

	t.Run("GetByID", func(t *testing.T) {
		rule, err := repo.GetByID(ctx, 1)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if rule == nil || rule.Name != "low success rate" {
			t.Errorf("Unexpected rule: %+v", rule)
		}
		// Schema defaults apply to unspecified columns.
		if rule.CooldownMinutes != 30 || rule.ConsecutiveFailuresRequired != 1 {
			t.Errorf("Expected schema defaults, got cooldown=%d consecutive=%d",
				rule.CooldownMinutes, rule.ConsecutiveFailuresRequired)
		}
	})

	t.Run("GetByID missing", func(t *testing.T) {
		rule, err := repo.GetByID(ctx, 999)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if rule != nil {
			t.Errorf("Expected nil for missing rule, got %+v", rule)
		}
	})

	t.Run("GetEnabled", func(t *testing.T) {
		rules, err := repo.GetEnabled(ctx)
		if err != nil {
			t.Fatalf("GetEnabled failed: %v", err)
		}
		if len(rules) != 2 {
			t.Errorf("Expected 2 enabled rules, got %d", len(rules))
		}
		for _, rule := range rules {
			if !rule.Enabled {
				t.Errorf("Disabled rule returned: %+v", rule)
			}
		}
	})

	t.Run("GetEnabledByTeam", func(t *testing.T) {
		rules, err := repo.GetEnabledByTeam(ctx, "team-1")
		if err != nil {
			t.Fatalf("GetEnabledByTeam failed: %v", err)
		}
		if len(rules) != 1 || rules[0].Name != "low success rate" {
			t.Errorf("Unexpected rules for team-1: %+v", rules)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
