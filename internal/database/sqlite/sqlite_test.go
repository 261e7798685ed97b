package sqlite

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			metric_source TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			threshold_value REAL NOT NULL,
			threshold_operator TEXT NOT NULL,
			threshold_unit TEXT,
			evaluation_window_minutes INTEGER NOT NULL DEFAULT 10,
			cooldown_minutes INTEGER NOT NULL DEFAULT 30,
			consecutive_failures_required INTEGER NOT NULL DEFAULT 1,
			max_alerts_per_hour INTEGER NOT NULL DEFAULT 4,
			severity TEXT NOT NULL DEFAULT 'warning',
			team_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE alerts (
			id TEXT PRIMARY KEY,
			alert_rule_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			metric_value REAL NOT NULL,
			threshold_value REAL NOT NULL,
			threshold_operator TEXT NOT NULL,
			context TEXT,
			team_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE alert_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE alert_rule_failures (
			alert_rule_id INTEGER PRIMARY KEY,
			consecutive_count INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE embedding_job_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms REAL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE performance_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id TEXT,
			metric_name TEXT NOT NULL,
			metric_value REAL NOT NULL,
			recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE notification_deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}
