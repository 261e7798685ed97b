package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/alerting"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

type stubRuleRepo struct {
	rules   []*models.AlertRule
	pingErr error
}

func (s *stubRuleRepo) GetByID(ctx context.Context, id int) (*models.AlertRule, error) {
	for _, rule := range s.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return nil, nil
}

func (s *stubRuleRepo) GetEnabled(ctx context.Context) ([]*models.AlertRule, error) {
	return s.rules, nil
}

func (s *stubRuleRepo) GetEnabledByTeam(ctx context.Context, teamID string) ([]*models.AlertRule, error) {
	return s.rules, nil
}

func (s *stubRuleRepo) Ping(ctx context.Context) error { return s.pingErr }

type stubAlertRepo struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (s *stubAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert-%d", len(s.alerts)+1)
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *stubAlertRepo) Query(ctx context.Context, filter repositories.AlertFilter) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, alert := range s.alerts {
		if filter.DateFrom != nil && alert.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if alert.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, alert)
	}
	return out, nil
}

func (s *stubAlertRepo) CountSince(ctx context.Context, ruleID int, since time.Time) (int, error) {
	return 0, nil
}

func (s *stubAlertRepo) HasOpenForRule(ctx context.Context, ruleID int) (bool, error) {
	return false, nil
}

func (s *stubAlertRepo) LatestForRule(ctx context.Context, ruleID int) (*models.Alert, error) {
	return nil, nil
}

func (s *stubAlertRepo) CreateHistory(ctx context.Context, history *models.AlertHistory) error {
	return nil
}

type stubFailureRepo struct{}

func (stubFailureRepo) Get(ctx context.Context, ruleID int) (*models.RuleFailureState, error) {
	return nil, nil
}
func (stubFailureRepo) Increment(ctx context.Context, ruleID int) (int, error) { return 1, nil }
func (stubFailureRepo) Clear(ctx context.Context, ruleID int) error            { return nil }

type stubMetricsRepo struct{}

func (stubMetricsRepo) EmbeddingSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 100, 0, nil
}
func (stubMetricsRepo) EmbeddingErrorRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 0, 0, nil
}
func (stubMetricsRepo) EmbeddingAvgDuration(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 0, 0, nil
}
func (stubMetricsRepo) LatestPerformanceValue(ctx context.Context, metricName string, since time.Time) (float64, bool, error) {
	return 0, false, nil
}
func (stubMetricsRepo) NotificationSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 100, 0, nil
}
func (stubMetricsRepo) RecordPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	return nil
}
func (stubMetricsRepo) InsertEmbeddingJobMetric(ctx context.Context, metric *models.EmbeddingJobMetric) error {
	return nil
}
func (stubMetricsRepo) InsertNotificationDelivery(ctx context.Context, delivery *models.NotificationDelivery) error {
	return nil
}
func (stubMetricsRepo) PrunePerformanceMetrics(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubHealthChecker struct{}

func (stubHealthChecker) PerformHealthCheck(ctx context.Context) (*metrics.HealthSnapshot, error) {
	return &metrics.HealthSnapshot{HealthScore: 100, DatabaseHealthy: true, Timestamp: time.Now()}, nil
}

func (stubHealthChecker) GetPerformanceMetrics() *metrics.PerformanceSnapshot {
	return &metrics.PerformanceSnapshot{}
}

type managerFixture struct {
	ruleRepo  *stubRuleRepo
	alertRepo *stubAlertRepo
	engine    *alerting.TriggerEngine
	collector *metrics.Collector
	manager   *EngineManager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ruleRepo := &stubRuleRepo{}
	alertRepo := &stubAlertRepo{}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Interval: time.Minute,
	}, stubMetricsRepo{}, stubHealthChecker{}, nil, logger)

	resolver := alerting.NewResolver(stubMetricsRepo{}, stubHealthChecker{}, logger)
	guard := alerting.NewGuard(alertRepo, stubFailureRepo{}, logger)
	engine := alerting.NewTriggerEngine(ruleRepo, alertRepo, resolver, guard, nil, alerting.EngineConfig{
		EvaluationInterval: time.Minute,
	}, logger)

	cfg := config.MonitoringConfig{
		EnableMetricsCollection: true,
		EnableAlertEvaluation:   true,
		EnableHealthMonitoring:  true,
		HealthCheckInterval:     "5m",
	}

	return &managerFixture{
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		engine:    engine,
		collector: collector,
		manager:   NewEngineManager(collector, engine, ruleRepo, alertRepo, nil, cfg, logger),
	}
}

func TestEngineManager_StartStop(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Start(ctx))
	defer f.manager.Stop()

	assert.True(t, f.manager.IsRunning())
	assert.True(t, f.collector.IsRunning())
	assert.True(t, f.engine.IsRunning())
	assert.Greater(t, f.manager.GetUptime(), time.Duration(0))

	// Starting twice is rejected.
	assert.Error(t, f.manager.Start(ctx))

	require.NoError(t, f.manager.Stop())
	assert.False(t, f.manager.IsRunning())
	assert.False(t, f.collector.IsRunning())
	assert.False(t, f.engine.IsRunning())
	assert.Equal(t, time.Duration(0), f.manager.GetUptime())

	// Stopping an already stopped manager is a no-op.
	require.NoError(t, f.manager.Stop())
}

func TestEngineManager_StartRollsBackOnEngineFailure(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// A pre-started engine makes the manager's engine start fail.
	require.NoError(t, f.engine.Start(ctx))

	err := f.manager.Start(ctx)
	require.Error(t, err)
	assert.False(t, f.manager.IsRunning())
	assert.False(t, f.collector.IsRunning())

	require.NoError(t, f.engine.Stop())
}

func TestEngineManager_StatusHealthy(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Start(ctx))
	defer f.manager.Stop()

	_, err := f.manager.PerformHealthCheck(ctx)
	require.NoError(t, err)

	status := f.manager.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, HealthHealthy, status.OverallHealth)
	assert.True(t, status.MetricsCollector.Running)
	assert.True(t, status.TriggerEngine.Running)
	require.NotNil(t, status.LastHealthCheck)
	assert.True(t, status.LastHealthCheck.DatabaseHealthy)
	assert.True(t, f.manager.IsHealthy())

	// One synchronous snapshot was taken on startup.
	assert.GreaterOrEqual(t, status.MetricsCollector.Counters["snapshots_taken"], int64(1))
}

func TestEngineManager_StatusCriticalWhenStopped(t *testing.T) {
	f := newManagerFixture(t)

	status := f.manager.GetStatus()
	assert.False(t, status.Running)
	assert.Equal(t, HealthCritical, status.OverallHealth)
	assert.False(t, f.manager.IsHealthy())
}

func TestEngineManager_HealthCheckReportsDatabaseFailure(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Start(ctx))
	defer f.manager.Stop()

	f.ruleRepo.pingErr = fmt.Errorf("disk I/O error")

	result, err := f.manager.PerformHealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, result.DatabaseHealthy)
	assert.NotEmpty(t, result.Issues)

	status := f.manager.GetStatus()
	assert.Equal(t, HealthCritical, status.OverallHealth)
	assert.False(t, f.manager.IsHealthy())
}

func TestEngineManager_GetRecentActivity(t *testing.T) {
	f := newManagerFixture(t)
	now := time.Now().UTC()

	seed := []struct {
		ruleID   int
		title    string
		severity models.AlertSeverity
		status   models.AlertStatus
		age      time.Duration
	}{
		{1, "low success rate", models.SeverityCritical, models.StatusActive, time.Hour},
		{1, "low success rate", models.SeverityCritical, models.StatusResolved, 2 * time.Hour},
		{2, "slow embeddings", models.SeverityWarning, models.StatusActive, 30 * time.Minute},
		{3, "old alert", models.SeverityInfo, models.StatusResolved, 48 * time.Hour},
	}
	for i, s := range seed {
		f.alertRepo.alerts = append(f.alertRepo.alerts, &models.Alert{
			ID:          fmt.Sprintf("a-%d", i),
			AlertRuleID: s.ruleID,
			Title:       s.title,
			Severity:    s.severity,
			Status:      s.status,
			CreatedAt:   now.Add(-s.age),
		})
	}

	summary, err := f.manager.GetRecentActivity(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 24, summary.WindowHours)
	assert.Equal(t, 3, summary.TotalAlerts)
	assert.Equal(t, 2, summary.BySeverity["critical"])
	assert.Equal(t, 1, summary.BySeverity["warning"])
	assert.Equal(t, 2, summary.ByStatus["active"])
	assert.Equal(t, 1, summary.ByStatus["resolved"])

	require.NotEmpty(t, summary.TopRules)
	assert.Equal(t, 1, summary.TopRules[0].RuleID)
	assert.Equal(t, 2, summary.TopRules[0].Count)
}

func TestEngineManager_UpdateConfig(t *testing.T) {
	f := newManagerFixture(t)

	cfg := f.manager.GetConfig()
	cfg.AlertEvaluationInterval = "2m"
	cfg.EnableHealthMonitoring = false
	f.manager.UpdateConfig(cfg)

	got := f.manager.GetConfig()
	assert.Equal(t, "2m", got.AlertEvaluationInterval)
	assert.False(t, got.EnableHealthMonitoring)
}

func TestEngineManager_ConcurrentConfigUpdateAndHealthCheck(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := f.manager.PerformHealthCheck(ctx); err != nil {
				t.Errorf("Health check failed: %v", err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		cfg := f.manager.GetConfig()
		for i := 0; i < 100; i++ {
			cfg.EnableMetricsCollection = i%2 == 0
			cfg.AlertEvaluationInterval = fmt.Sprintf("%dm", i%5+1)
			f.manager.UpdateConfig(cfg)
		}
	}()

	wg.Wait()
}

func TestEngineManager_Restart(t *testing.T) {
	if testing.Short() {
		t.Skip("restart waits out the grace period")
	}

	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Start(ctx))
	defer f.manager.Stop()

	firstStart := f.manager.GetStatus().StartedAt
	require.NotNil(t, firstStart)

	require.NoError(t, f.manager.Restart(ctx))
	assert.True(t, f.manager.IsRunning())

	secondStart := f.manager.GetStatus().StartedAt
	require.NotNil(t, secondStart)
	assert.True(t, secondStart.After(*firstStart))
}
