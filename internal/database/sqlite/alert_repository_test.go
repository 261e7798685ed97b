package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

func insertTestAlert(t *testing.T, repo repositories.AlertRepository, ruleID int, status models.AlertStatus, createdAt time.Time) *models.Alert {
	t.Helper()

	alert := &models.Alert{
		AlertRuleID:       ruleID,
		Title:             "Test alert",
		Severity:          models.SeverityWarning,
		MetricName:        "success_rate",
		MetricValue:       80,
		ThresholdValue:    90,
		ThresholdOperator: "<",
		TeamID:            "team-1",
		Status:            status,
		CreatedAt:         createdAt,
	}
	if err := repo.Create(context.Background(), alert); err != nil {
		t.Fatalf("Failed to create alert: %v", err)
	}
	return alert
}

func TestAlertRepository_CreateAssignsDefaults(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	alert := &models.Alert{
		AlertRuleID:       1,
		Title:             "Defaults",
		Severity:          models.SeverityCritical,
		MetricName:        "error_rate",
		MetricValue:       15,
		ThresholdValue:    10,
		ThresholdOperator: ">",
		TeamID:            "team-1",
	}
	if err := repo.Create(ctx, alert); err != nil {
		t.Fatalf("Failed to create alert: %v", err)
	}

	if alert.ID == "" {
		t.Error("Expected generated alert ID")
	}
	if alert.Status != models.StatusActive {
		t.Errorf("Expected default status active, got %s", alert.Status)
	}
	if alert.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestAlertRepository_ContextRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	// Alerts without context are stored with a NULL column and must still
	// scan back cleanly.
	insertTestAlert(t, repo, 1, models.StatusActive, time.Now().UTC())

	withContext := &models.Alert{
		AlertRuleID:       2,
		Title:             "With context",
		Severity:          models.SeverityWarning,
		MetricName:        "success_rate",
		MetricValue:       80,
		ThresholdValue:    90,
		ThresholdOperator: "<",
		Context:           models.RawJSON(`{"metric_name":"success_rate","metric_value":80}`),
		TeamID:            "team-1",
	}
	if err := repo.Create(ctx, withContext); err != nil {
		t.Fatalf("Failed to create alert with context: %v", err)
	}

	alerts, err := repo.Query(ctx, repositories.AlertFilter{})
	if err != nil {
		t.Fatalf("Failed to query alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}

	for _, alert := range alerts {
		switch alert.AlertRuleID {
		case 1:
			if alert.Context != nil {
				t.Errorf("Expected nil context for alert without one, got %s", alert.Context)
			}
		case 2:
			if string(alert.Context) != `{"metric_name":"success_rate","metric_value":80}` {
				t.Errorf("Context not preserved, got %s", alert.Context)
			}
		}
	}

	latest, err := repo.LatestForRule(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get latest alert: %v", err)
	}
	if latest == nil || latest.Context != nil {
		t.Error("Expected latest alert with nil context")
	}
}

func TestAlertRepository_Query(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	insertTestAlert(t, repo, 1, models.StatusActive, now.Add(-10*time.Minute))
	insertTestAlert(t, repo, 1, models.StatusResolved, now.Add(-2*time.Hour))
	insertTestAlert(t, repo, 2, models.StatusAcknowledged, now.Add(-5*time.Minute))

	ruleID := 1
	alerts, err := repo.Query(ctx, repositories.AlertFilter{AlertRuleID: &ruleID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts for rule 1, got %d", len(alerts))
	}
	if !alerts[0].CreatedAt.After(alerts[1].CreatedAt) {
		t.Error("Expected newest-first ordering")
	}

	since := now.Add(-time.Hour)
	alerts, err = repo.Query(ctx, repositories.AlertFilter{
		Statuses: []models.AlertStatus{models.StatusActive, models.StatusAcknowledged},
		DateFrom: &since,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 open alerts in window, got %d", len(alerts))
	}
}

func TestAlertRepository_CountSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	insertTestAlert(t, repo, 1, models.StatusResolved, now.Add(-30*time.Minute))
	insertTestAlert(t, repo, 1, models.StatusResolved, now.Add(-90*time.Minute))

	count, err := repo.CountSince(ctx, 1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 alert within the hour, got %d", count)
	}
}

func TestAlertRepository_HasOpenForRule(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	open, err := repo.HasOpenForRule(ctx, 1)
	if err != nil {
		t.Fatalf("HasOpenForRule failed: %v", err)
	}
	if open {
		t.Error("Expected no open alerts")
	}

	// Resolved and suppressed alerts do not block re-triggering.
	insertTestAlert(t, repo, 1, models.StatusResolved, now)
	insertTestAlert(t, repo, 1, models.StatusSuppressed, now)

	open, err = repo.HasOpenForRule(ctx, 1)
	if err != nil {
		t.Fatalf("HasOpenForRule failed: %v", err)
	}
	if open {
		t.Error("Expected resolved/suppressed alerts to not count as open")
	}

	insertTestAlert(t, repo, 1, models.StatusAcknowledged, now)

	open, err = repo.HasOpenForRule(ctx, 1)
	if err != nil {
		t.Fatalf("HasOpenForRule failed: %v", err)
	}
	if !open {
		t.Error("Expected acknowledged alert to count as open")
	}
}

func TestAlertRepository_LatestForRule(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	latest, err := repo.LatestForRule(ctx, 1)
	if err != nil {
		t.Fatalf("LatestForRule failed: %v", err)
	}
	if latest != nil {
		t.Error("Expected nil for rule with no alerts")
	}

	insertTestAlert(t, repo, 1, models.StatusResolved, now.Add(-time.Hour))
	newest := insertTestAlert(t, repo, 1, models.StatusActive, now)

	latest, err = repo.LatestForRule(ctx, 1)
	if err != nil {
		t.Fatalf("LatestForRule failed: %v", err)
	}
	if latest == nil || latest.ID != newest.ID {
		t.Errorf("Expected latest alert %s, got %+v", newest.ID, latest)
	}
}

func TestAlertRepository_CreateHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	alert := insertTestAlert(t, repo, 1, models.StatusActive, time.Now().UTC())

	history := &models.AlertHistory{
		AlertID:   alert.ID,
		EventType: "created",
	}
	if err := repo.CreateHistory(ctx, history); err != nil {
		t.Fatalf("CreateHistory failed: %v", err)
	}
	if history.ID == 0 {
		t.Error("Expected history ID to be assigned")
	}
}
