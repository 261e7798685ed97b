package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/alerting"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

const (
	// restartGracePeriod separates stop from start during a restart so
	// in-flight work drains before components come back.
	restartGracePeriod = 2 * time.Second

	// Staleness thresholds for the health check. A component whose last
	// activity is older than its threshold raises a health issue.
	collectorStaleAfter = 10 * time.Minute
	engineStaleAfter    = 15 * time.Minute

	// degradedErrorThreshold is the combined error count above which a running
	// system reports degraded health.
	degradedErrorThreshold = 10
)

// OverallHealth summarizes system health for the status endpoint
type OverallHealth string

const (
	HealthHealthy  OverallHealth = "healthy"
	HealthDegraded OverallHealth = "degraded"
	HealthCritical OverallHealth = "critical"
)

// HealthCheckResult is one health check outcome
type HealthCheckResult struct {
	Timestamp       time.Time `json:"timestamp"`
	DatabaseHealthy bool      `json:"database_healthy"`
	Issues          []string  `json:"issues,omitempty"`
}

// ComponentStatus describes one managed component in the status report
type ComponentStatus struct {
	Enabled      bool             `json:"enabled"`
	Running      bool             `json:"running"`
	LastActivity *time.Time       `json:"last_activity,omitempty"`
	Counters     map[string]int64 `json:"counters"`
	Errors       int64            `json:"errors"`
}

// ManagerStatus is the full status report for the monitoring system
type ManagerStatus struct {
	Running          bool               `json:"running"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	Uptime           string             `json:"uptime"`
	MetricsCollector ComponentStatus    `json:"metrics_collector"`
	TriggerEngine    ComponentStatus    `json:"trigger_engine"`
	LastHealthCheck  *HealthCheckResult `json:"last_health_check,omitempty"`
	OverallHealth    OverallHealth      `json:"overall_health"`
}

// RuleActivity counts recent alerts for one rule
type RuleActivity struct {
	RuleID     int    `json:"rule_id"`
	AlertTitle string `json:"alert_title"`
	Count      int    `json:"count"`
}

// ActivitySummary aggregates recent alert activity
type ActivitySummary struct {
	WindowHours int            `json:"window_hours"`
	TotalAlerts int            `json:"total_alerts"`
	BySeverity  map[string]int `json:"by_severity"`
	ByStatus    map[string]int `json:"by_status"`
	TopRules    []RuleActivity `json:"top_rules"`
}

// EngineManager owns the lifecycle of the metrics collector and the alert
// trigger engine. Startup is ordered: the collector comes up first so the
// engine never evaluates against an empty, unfed metric store.
type EngineManager struct {
	collector *metrics.Collector
	engine    *alerting.TriggerEngine
	rules     repositories.AlertRuleRepository
	alerts    repositories.AlertRepository
	exporter  *metrics.PrometheusExporter
	logger    *logrus.Logger

	mu        sync.Mutex
	cfg       config.MonitoringConfig
	running   bool
	startedAt *time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup

	healthMu        sync.Mutex
	lastHealthCheck *HealthCheckResult
}

// NewEngineManager creates a manager over the given components
func NewEngineManager(
	collector *metrics.Collector,
	engine *alerting.TriggerEngine,
	rules repositories.AlertRuleRepository,
	alerts repositories.AlertRepository,
	exporter *metrics.PrometheusExporter,
	cfg config.MonitoringConfig,
	logger *logrus.Logger,
) *EngineManager {
	return &EngineManager{
		collector: collector,
		engine:    engine,
		rules:     rules,
		alerts:    alerts,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start brings up the enabled components in order: collector, trigger engine,
// health check loop. Any component failure rolls back what already started.
func (m *EngineManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitoring system already running")
	}

	m.logger.Info("Starting monitoring system")

	if m.cfg.EnableMetricsCollection {
		if err := m.collector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics collector: %w", err)
		}
	}

	if m.cfg.EnableAlertEvaluation {
		if err := m.engine.Start(ctx); err != nil {
			m.stopComponentsLocked()
			return fmt.Errorf("failed to start trigger engine: %w", err)
		}
	}

	m.stopChan = make(chan struct{})
	if m.cfg.EnableHealthMonitoring {
		interval := config.ParseInterval(m.cfg.HealthCheckInterval, 5*time.Minute)
		m.wg.Add(1)
		go m.healthLoop(interval)
	}

	now := time.Now()
	m.startedAt = &now
	m.running = true

	m.logger.WithFields(logrus.Fields{
		"metrics_collection": m.cfg.EnableMetricsCollection,
		"alert_evaluation":   m.cfg.EnableAlertEvaluation,
		"health_monitoring":  m.cfg.EnableHealthMonitoring,
	}).Info("Monitoring system started")

	return nil
}

// Stop shuts down all components. Stopping an already stopped manager is a
// logged no-op. Individual component stop errors are logged and tolerated so
// every component gets a stop attempt.
func (m *EngineManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		m.logger.Warn("Monitoring system stop requested but system is not running")
		return nil
	}

	m.logger.Info("Stopping monitoring system")

	close(m.stopChan)
	m.wg.Wait()

	m.stopComponentsLocked()

	m.running = false
	m.startedAt = nil

	m.logger.Info("Monitoring system stopped")
	return nil
}

// stopComponentsLocked stops engine then collector, reverse of startup order.
// Caller holds m.mu.
func (m *EngineManager) stopComponentsLocked() {
	if m.cfg.EnableAlertEvaluation && m.engine.IsRunning() {
		if err := m.engine.Stop(); err != nil {
			m.logger.WithError(err).Error("Failed to stop trigger engine")
		}
	}
	if m.cfg.EnableMetricsCollection && m.collector.IsRunning() {
		if err := m.collector.Stop(); err != nil {
			m.logger.WithError(err).Error("Failed to stop metrics collector")
		}
	}
}

// Restart stops the system, waits a grace period, and starts it again
func (m *EngineManager) Restart(ctx context.Context) error {
	m.logger.Info("Restarting monitoring system")

	if err := m.Stop(); err != nil {
		return fmt.Errorf("restart failed during stop: %w", err)
	}

	select {
	case <-time.After(restartGracePeriod):
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.Start(ctx)
}

func (m *EngineManager) healthLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.PerformHealthCheck(context.Background()); err != nil {
				m.logger.WithError(err).Error("Health check failed")
			}
		case <-m.stopChan:
			return
		}
	}
}

// PerformHealthCheck verifies database reachability and component liveness.
// Stale components and a missing database become issues, not errors.
func (m *EngineManager) PerformHealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	result := &HealthCheckResult{
		Timestamp:       time.Now(),
		DatabaseHealthy: true,
	}

	if err := m.rules.Ping(ctx); err != nil {
		result.DatabaseHealthy = false
		result.Issues = append(result.Issues, fmt.Sprintf("database unreachable: %v", err))
		m.logger.WithError(err).Error("Health check: database unreachable")
	}

	if cfg.EnableMetricsCollection {
		stats := m.collector.GetStatistics()
		if stats.LastCollection != nil && time.Since(*stats.LastCollection) > collectorStaleAfter {
			issue := fmt.Sprintf("metrics collector stale: last collection %s ago",
				time.Since(*stats.LastCollection).Round(time.Second))
			result.Issues = append(result.Issues, issue)
			m.logger.WithField("last_collection", stats.LastCollection).Warn("Metrics collector is stale")
		}
	}

	if cfg.EnableAlertEvaluation {
		stats := m.engine.GetStatistics()
		if !stats.LastEvaluation.IsZero() && time.Since(stats.LastEvaluation) > engineStaleAfter {
			issue := fmt.Sprintf("trigger engine stale: last evaluation %s ago",
				time.Since(stats.LastEvaluation).Round(time.Second))
			result.Issues = append(result.Issues, issue)
			m.logger.WithField("last_evaluation", stats.LastEvaluation).Warn("Trigger engine is stale")
		}
	}

	if m.exporter != nil {
		open, err := m.alerts.Query(ctx, repositories.AlertFilter{
			Statuses: []models.AlertStatus{models.StatusActive, models.StatusAcknowledged},
		})
		if err != nil {
			m.logger.WithError(err).Warn("Failed to count open alerts")
		} else {
			m.exporter.SetOpenAlerts(len(open))
		}
	}

	m.healthMu.Lock()
	m.lastHealthCheck = result
	m.healthMu.Unlock()

	return result, nil
}

// GetStatus reports manager and per-component state
func (m *EngineManager) GetStatus() *ManagerStatus {
	m.mu.Lock()
	running := m.running
	startedAt := m.startedAt
	cfg := m.cfg
	m.mu.Unlock()

	collectorStats := m.collector.GetStatistics()
	engineStats := m.engine.GetStatistics()

	status := &ManagerStatus{
		Running:   running,
		StartedAt: startedAt,
		MetricsCollector: ComponentStatus{
			Enabled:      cfg.EnableMetricsCollection,
			Running:      m.collector.IsRunning(),
			LastActivity: collectorStats.LastCollection,
			Counters: map[string]int64{
				"snapshots_taken": collectorStats.SnapshotsTaken,
			},
			Errors: collectorStats.CollectionErrors,
		},
		TriggerEngine: ComponentStatus{
			Enabled: cfg.EnableAlertEvaluation,
			Running: m.engine.IsRunning(),
			Counters: map[string]int64{
				"rules_evaluated":  engineStats.RulesEvaluated,
				"alerts_triggered": engineStats.AlertsTriggered,
			},
			Errors: engineStats.EvaluationErrors,
		},
	}
	if !engineStats.LastEvaluation.IsZero() {
		last := engineStats.LastEvaluation
		status.TriggerEngine.LastActivity = &last
	}
	if startedAt != nil {
		status.Uptime = time.Since(*startedAt).Round(time.Second).String()
	}

	m.healthMu.Lock()
	status.LastHealthCheck = m.lastHealthCheck
	m.healthMu.Unlock()

	status.OverallHealth = m.overallHealth(status)
	return status
}

// overallHealth ranks critical above degraded above healthy. A component that
// should be running but is not, or an unreachable database, is critical.
// Accumulated errors past the threshold degrade an otherwise healthy system.
func (m *EngineManager) overallHealth(status *ManagerStatus) OverallHealth {
	if !status.Running {
		return HealthCritical
	}
	if status.MetricsCollector.Enabled && !status.MetricsCollector.Running {
		return HealthCritical
	}
	if status.TriggerEngine.Enabled && !status.TriggerEngine.Running {
		return HealthCritical
	}
	if status.LastHealthCheck != nil && !status.LastHealthCheck.DatabaseHealthy {
		return HealthCritical
	}
	if status.MetricsCollector.Errors+status.TriggerEngine.Errors > degradedErrorThreshold {
		return HealthDegraded
	}
	return HealthHealthy
}

// GetRecentActivity summarizes alerts created within the last N hours
func (m *EngineManager) GetRecentActivity(ctx context.Context, hours int) (*ActivitySummary, error) {
	if hours <= 0 {
		hours = 24
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	alerts, err := m.alerts.Query(ctx, repositories.AlertFilter{DateFrom: &since})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", err)
	}

	summary := &ActivitySummary{
		WindowHours: hours,
		TotalAlerts: len(alerts),
		BySeverity:  make(map[string]int),
		ByStatus:    make(map[string]int),
	}

	type ruleKey struct {
		id    int
		title string
	}
	ruleCounts := make(map[ruleKey]int)
	for _, alert := range alerts {
		summary.BySeverity[string(alert.Severity)]++
		summary.ByStatus[string(alert.Status)]++
		ruleCounts[ruleKey{id: alert.AlertRuleID, title: alert.Title}]++
	}

	for key, count := range ruleCounts {
		summary.TopRules = append(summary.TopRules, RuleActivity{
			RuleID:     key.id,
			AlertTitle: key.title,
			Count:      count,
		})
	}
	sort.Slice(summary.TopRules, func(i, j int) bool {
		if summary.TopRules[i].Count != summary.TopRules[j].Count {
			return summary.TopRules[i].Count > summary.TopRules[j].Count
		}
		return summary.TopRules[i].RuleID < summary.TopRules[j].RuleID
	})
	if len(summary.TopRules) > 10 {
		summary.TopRules = summary.TopRules[:10]
	}

	return summary, nil
}

// ForceEvaluation runs one evaluation cycle immediately
func (m *EngineManager) ForceEvaluation(ctx context.Context) ([]*alerting.EvaluationResult, error) {
	return m.engine.ForceEvaluation(ctx)
}

// ForceRuleEvaluation evaluates a single rule immediately. Returns nil when
// the rule does not exist.
func (m *EngineManager) ForceRuleEvaluation(ctx context.Context, ruleID int) (*alerting.EvaluationResult, error) {
	return m.engine.ForceRuleEvaluation(ctx, ruleID)
}

// GetConfig returns the current monitoring configuration
func (m *EngineManager) GetConfig() config.MonitoringConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig replaces the monitoring configuration. Interval and enable
// flags take effect on the next restart.
func (m *EngineManager) UpdateConfig(cfg config.MonitoringConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.logger.WithFields(logrus.Fields{
		"metrics_collection_interval": cfg.MetricsCollectionInterval,
		"alert_evaluation_interval":   cfg.AlertEvaluationInterval,
		"health_check_interval":       cfg.HealthCheckInterval,
	}).Info("Monitoring configuration updated, restart required to apply")
}

// IsRunning reports whether the manager lifecycle is active
func (m *EngineManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// IsHealthy reports whether the system is running with a healthy database
func (m *EngineManager) IsHealthy() bool {
	if !m.IsRunning() {
		return false
	}
	m.healthMu.Lock()
	defer m.healthMu.Unlock()
	return m.lastHealthCheck == nil || m.lastHealthCheck.DatabaseHealthy
}

// GetUptime returns time since start, zero when stopped
func (m *EngineManager) GetUptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedAt == nil {
		return 0
	}
	return time.Since(*m.startedAt)
}
