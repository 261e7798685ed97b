package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

const (
	// maxConcurrentEvaluations bounds how many rules evaluate in parallel
	// within one cycle.
	maxConcurrentEvaluations = 10

	defaultEvaluationInterval  = 60 * time.Second
	defaultHealthCheckInterval = 5 * time.Minute

	// defaultRuleTimeout caps a single rule evaluation. A rule that blocks
	// past this produces a timed-out result instead of stalling the cycle.
	defaultRuleTimeout = 30 * time.Second

	// durationSampleSize is how many recent cycle durations feed the rolling
	// average in EngineStatistics.
	durationSampleSize = 100
)

// EvaluationResult describes the outcome of evaluating one rule
type EvaluationResult struct {
	RuleID         int                  `json:"rule_id"`
	RuleName       string               `json:"rule_name"`
	Triggered      bool                 `json:"triggered"`
	MetricValue    *float64             `json:"metric_value,omitempty"`
	ThresholdValue float64              `json:"threshold_value"`
	Severity       models.AlertSeverity `json:"severity"`
	Reason         string               `json:"reason,omitempty"`
}

// EngineStatistics tracks trigger engine activity since startup
type EngineStatistics struct {
	RulesEvaluated         int64         `json:"rules_evaluated"`
	AlertsTriggered        int64         `json:"alerts_triggered"`
	EvaluationErrors       int64         `json:"evaluation_errors"`
	LastEvaluation         time.Time     `json:"last_evaluation"`
	LastEvaluationDuration time.Duration `json:"last_evaluation_duration"`
	AvgEvaluationDuration  time.Duration `json:"avg_evaluation_duration"`
	StartedAt              time.Time     `json:"started_at"`
}

// ErrCycleInProgress is returned when an evaluation is requested while a
// full cycle is still running. Periodic ticks treat it as a skip; manual
// requests surface it to the caller.
var ErrCycleInProgress = errors.New("evaluation cycle already in progress")

// AlertCreatedFunc receives every alert the engine creates
type AlertCreatedFunc func(alert *models.Alert, rule *models.AlertRule)

// EngineConfig holds the trigger engine's timing knobs
type EngineConfig struct {
	EvaluationInterval  time.Duration
	HealthCheckInterval time.Duration
	RuleTimeout         time.Duration
}

// TriggerEngine periodically evaluates enabled alert rules against resolved
// metric values and creates alerts when conditions hold. One engine instance
// runs per process; Start and Stop guard the lifecycle.
type TriggerEngine struct {
	rules    repositories.AlertRuleRepository
	alerts   repositories.AlertRepository
	resolver *Resolver
	guard    *Guard
	exporter *metrics.PrometheusExporter
	config   EngineConfig
	logger   *logrus.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// evaluating guards against overlapping cycles. A tick that fires while a
	// cycle is still in flight is skipped, not queued.
	evalMu     sync.Mutex
	evaluating bool

	statsMu   sync.Mutex
	stats     EngineStatistics
	durations []time.Duration

	callbackMu sync.RWMutex
	callbacks  []AlertCreatedFunc
}

// NewTriggerEngine creates a trigger engine. The exporter may be nil when
// Prometheus metrics are disabled.
func NewTriggerEngine(
	rules repositories.AlertRuleRepository,
	alerts repositories.AlertRepository,
	resolver *Resolver,
	guard *Guard,
	exporter *metrics.PrometheusExporter,
	config EngineConfig,
	logger *logrus.Logger,
) *TriggerEngine {
	if config.EvaluationInterval <= 0 {
		config.EvaluationInterval = defaultEvaluationInterval
	}
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = defaultHealthCheckInterval
	}
	if config.RuleTimeout <= 0 {
		config.RuleTimeout = defaultRuleTimeout
	}

	return &TriggerEngine{
		rules:    rules,
		alerts:   alerts,
		resolver: resolver,
		guard:    guard,
		exporter: exporter,
		config:   config,
		logger:   logger,
	}
}

// OnAlertCreated registers a callback invoked for every created alert.
// Callbacks run synchronously on the evaluating goroutine and must not block.
func (e *TriggerEngine) OnAlertCreated(fn AlertCreatedFunc) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

// Start transitions the engine to running, performs one synchronous full
// evaluation, and launches the periodic evaluation and health check loops
func (e *TriggerEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("trigger engine already running")
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.statsMu.Lock()
	e.stats.StartedAt = time.Now()
	e.statsMu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"evaluation_interval":   e.config.EvaluationInterval.String(),
		"health_check_interval": e.config.HealthCheckInterval.String(),
	}).Info("Starting alert trigger engine")

	if _, err := e.EvaluateAllRules(ctx); err != nil {
		e.logger.WithError(err).Warn("Initial rule evaluation failed")
	}

	e.wg.Add(2)
	go e.evaluationLoop()
	go e.healthCheckLoop()

	return nil
}

// Stop halts the periodic loops and waits for any in-flight cycle to finish.
// Stopping an engine that is not running is a logged no-op.
func (e *TriggerEngine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.logger.Warn("Trigger engine stop requested but engine is not running")
		return nil
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Alert trigger engine stopped")
	return nil
}

// IsRunning reports whether the engine lifecycle is active
func (e *TriggerEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *TriggerEngine) evaluationLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := e.EvaluateAllRules(context.Background()); err != nil && !errors.Is(err, ErrCycleInProgress) {
				e.logger.WithError(err).Error("Periodic rule evaluation failed")
			}
		case <-e.stopChan:
			return
		}
	}
}

func (e *TriggerEngine) healthCheckLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := e.GetStatistics()
			e.logger.WithFields(logrus.Fields{
				"rules_evaluated":   stats.RulesEvaluated,
				"alerts_triggered":  stats.AlertsTriggered,
				"evaluation_errors": stats.EvaluationErrors,
				"last_evaluation":   stats.LastEvaluation.Format(time.RFC3339),
			}).Debug("Trigger engine health check")
		case <-e.stopChan:
			return
		}
	}
}

// EvaluateAllRules runs one full evaluation cycle over every enabled rule.
// Rules are evaluated in batches of maxConcurrentEvaluations; a failing rule
// is isolated and counted, never aborts the cycle. If a cycle is already in
// flight the call returns ErrCycleInProgress immediately.
func (e *TriggerEngine) EvaluateAllRules(ctx context.Context) ([]*EvaluationResult, error) {
	e.evalMu.Lock()
	if e.evaluating {
		e.evalMu.Unlock()
		e.logger.Debug("Evaluation cycle already in progress, skipping")
		return nil, ErrCycleInProgress
	}
	e.evaluating = true
	e.evalMu.Unlock()

	defer func() {
		e.evalMu.Lock()
		e.evaluating = false
		e.evalMu.Unlock()
	}()

	start := time.Now()

	rules, err := e.rules.GetEnabled(ctx)
	if err != nil {
		e.recordCycleError()
		return nil, fmt.Errorf("failed to load enabled alert rules: %w", err)
	}

	results := make([]*EvaluationResult, 0, len(rules))
	var errorCount int64
	var triggeredCount int64

	for batchStart := 0; batchStart < len(rules); batchStart += maxConcurrentEvaluations {
		batchEnd := batchStart + maxConcurrentEvaluations
		if batchEnd > len(rules) {
			batchEnd = len(rules)
		}
		batch := rules[batchStart:batchEnd]

		batchResults := make([]*EvaluationResult, len(batch))
		var wg sync.WaitGroup
		var errMu sync.Mutex

		for i, rule := range batch {
			wg.Add(1)
			go func(i int, rule *models.AlertRule) {
				defer wg.Done()

				result, err := e.evaluateRuleWithTimeout(ctx, rule)
				if err != nil {
					errMu.Lock()
					errorCount++
					errMu.Unlock()
					e.logger.WithError(err).WithFields(logrus.Fields{
						"rule_id":   rule.ID,
						"rule_name": rule.Name,
					}).Error("Rule evaluation failed")
					result = &EvaluationResult{
						RuleID:         rule.ID,
						RuleName:       rule.Name,
						Triggered:      false,
						ThresholdValue: rule.ThresholdValue,
						Severity:       rule.Severity,
						Reason:         fmt.Sprintf("evaluation error: %v", err),
					}
				}
				batchResults[i] = result
			}(i, rule)
		}
		wg.Wait()

		for _, result := range batchResults {
			if result.Triggered {
				triggeredCount++
			}
			results = append(results, result)
		}
	}

	duration := time.Since(start)
	e.recordCycle(int64(len(rules)), triggeredCount, errorCount, duration)

	e.logger.WithFields(logrus.Fields{
		"rules_evaluated":  len(rules),
		"alerts_triggered": triggeredCount,
		"errors":           errorCount,
		"duration_ms":      duration.Milliseconds(),
	}).Info("Completed rule evaluation cycle")

	return results, nil
}

// evaluateRuleWithTimeout bounds a single rule evaluation. On timeout the
// rule yields a non-triggered result rather than an error.
func (e *TriggerEngine) evaluateRuleWithTimeout(ctx context.Context, rule *models.AlertRule) (*EvaluationResult, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.config.RuleTimeout)
	defer cancel()

	type outcome struct {
		result *EvaluationResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := e.evaluateRule(evalCtx, rule)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-evalCtx.Done():
		e.logger.WithFields(logrus.Fields{
			"rule_id":   rule.ID,
			"rule_name": rule.Name,
			"timeout":   e.config.RuleTimeout.String(),
		}).Warn("Rule evaluation timed out")
		return &EvaluationResult{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			Triggered:      false,
			ThresholdValue: rule.ThresholdValue,
			Severity:       rule.Severity,
			Reason:         "evaluation timed out",
		}, nil
	}
}

// evaluateRule resolves the rule's metric and walks the decision chain:
// cooldown, condition, consecutive-failure guard, trigger.
func (e *TriggerEngine) evaluateRule(ctx context.Context, rule *models.AlertRule) (*EvaluationResult, error) {
	if e.exporter != nil {
		e.exporter.RecordEvaluation(false)
	}

	result := &EvaluationResult{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		ThresholdValue: rule.ThresholdValue,
		Severity:       rule.Severity,
	}

	value, ok := e.resolver.Resolve(ctx, rule)
	if !ok {
		result.Reason = "metric value not available"
		return result, nil
	}
	result.MetricValue = &value

	inCooldown, err := e.guard.InCooldown(ctx, rule)
	if err != nil {
		return nil, err
	}
	if inCooldown {
		result.Reason = "rule in cooldown period"
		return result, nil
	}

	if !EvaluateCondition(value, rule.ThresholdValue, rule.ThresholdOperator, e.logger) {
		if err := e.guard.ClearFailures(ctx, rule.ID); err != nil {
			e.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to reset breach counter")
		}
		result.Reason = "condition not met"
		return result, nil
	}

	if rule.ConsecutiveFailuresRequired > 1 {
		count, err := e.guard.RecordBreach(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		if count < rule.ConsecutiveFailuresRequired {
			result.Reason = fmt.Sprintf("consecutive breaches %d/%d", count, rule.ConsecutiveFailuresRequired)
			return result, nil
		}
	}

	alert, reason, err := e.triggerAlert(ctx, rule, value)
	if err != nil {
		return nil, err
	}

	// The decision is made either way, so the breach streak restarts.
	if err := e.guard.ClearFailures(ctx, rule.ID); err != nil {
		e.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to reset breach counter")
	}

	if alert == nil {
		result.Reason = reason
		return result, nil
	}

	result.Triggered = true
	result.Reason = "threshold breached"
	return result, nil
}

// triggerAlert creates an alert for the rule unless dedup or the hourly rate
// limit suppresses it. A nil alert with a reason means suppressed, not failed.
func (e *TriggerEngine) triggerAlert(ctx context.Context, rule *models.AlertRule, value float64) (*models.Alert, string, error) {
	open, err := e.alerts.HasOpenForRule(ctx, rule.ID)
	if err != nil {
		return nil, "", fmt.Errorf("dedup check failed for rule %d: %w", rule.ID, err)
	}
	if open {
		return nil, "open alert already exists", nil
	}

	if rule.MaxAlertsPerHour > 0 {
		count, err := e.alerts.CountSince(ctx, rule.ID, time.Now().UTC().Add(-time.Hour))
		if err != nil {
			return nil, "", fmt.Errorf("rate limit check failed for rule %d: %w", rule.ID, err)
		}
		if count >= rule.MaxAlertsPerHour {
			e.logger.WithFields(logrus.Fields{
				"rule_id":       rule.ID,
				"rule_name":     rule.Name,
				"max_per_hour":  rule.MaxAlertsPerHour,
				"recent_alerts": count,
			}).Warn("Hourly alert limit reached, suppressing alert")
			return nil, "hourly alert limit reached", nil
		}
	}

	alert := &models.Alert{
		AlertRuleID:       rule.ID,
		Title:             rule.Name,
		Description:       composeDescription(rule, value),
		Severity:          rule.Severity,
		MetricName:        rule.MetricName,
		MetricValue:       value,
		ThresholdValue:    rule.ThresholdValue,
		ThresholdOperator: rule.ThresholdOperator,
		Context:           composeContext(rule, value),
		TeamID:            rule.TeamID,
		Status:            models.StatusActive,
	}

	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, "", fmt.Errorf("failed to create alert for rule %d: %w", rule.ID, err)
	}

	history := &models.AlertHistory{
		AlertID:   alert.ID,
		EventType: "created",
		Metadata:  alert.Context,
	}
	if err := e.alerts.CreateHistory(ctx, history); err != nil {
		return nil, "", fmt.Errorf("failed to record alert history for rule %d: %w", rule.ID, err)
	}

	e.logger.WithFields(logrus.Fields{
		"alert_id":     alert.ID,
		"rule_id":      rule.ID,
		"rule_name":    rule.Name,
		"severity":     string(rule.Severity),
		"metric_value": value,
		"threshold":    rule.ThresholdValue,
	}).Info("Alert triggered")

	if e.exporter != nil {
		e.exporter.RecordAlertTriggered(string(rule.Severity))
	}

	e.callbackMu.RLock()
	callbacks := make([]AlertCreatedFunc, len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.callbackMu.RUnlock()
	for _, fn := range callbacks {
		fn(alert, rule)
	}

	return alert, "", nil
}

// ForceEvaluation runs one full evaluation cycle immediately
func (e *TriggerEngine) ForceEvaluation(ctx context.Context) ([]*EvaluationResult, error) {
	e.logger.Info("Manual rule evaluation requested")
	return e.EvaluateAllRules(ctx)
}

// ForceRuleEvaluation evaluates a single rule by ID immediately, bypassing
// the enabled filter. Returns nil when the rule does not exist.
func (e *TriggerEngine) ForceRuleEvaluation(ctx context.Context, ruleID int) (*EvaluationResult, error) {
	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert rule %d: %w", ruleID, err)
	}
	if rule == nil {
		return nil, nil
	}

	e.logger.WithFields(logrus.Fields{
		"rule_id":   rule.ID,
		"rule_name": rule.Name,
	}).Info("Manual single-rule evaluation requested")

	result, err := e.evaluateRuleWithTimeout(ctx, rule)
	if err != nil {
		e.statsMu.Lock()
		e.stats.EvaluationErrors++
		e.statsMu.Unlock()
		return nil, err
	}

	e.statsMu.Lock()
	e.stats.RulesEvaluated++
	if result.Triggered {
		e.stats.AlertsTriggered++
	}
	e.statsMu.Unlock()

	return result, nil
}

// GetStatistics returns a snapshot of the engine counters
func (e *TriggerEngine) GetStatistics() EngineStatistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *TriggerEngine) recordCycle(evaluated, triggered, errors int64, duration time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.RulesEvaluated += evaluated
	e.stats.AlertsTriggered += triggered
	e.stats.EvaluationErrors += errors
	e.stats.LastEvaluation = time.Now()
	e.stats.LastEvaluationDuration = duration

	e.durations = append(e.durations, duration)
	if len(e.durations) > durationSampleSize {
		e.durations = e.durations[len(e.durations)-durationSampleSize:]
	}
	var total time.Duration
	for _, d := range e.durations {
		total += d
	}
	e.stats.AvgEvaluationDuration = total / time.Duration(len(e.durations))

	if e.exporter != nil {
		e.exporter.RecordCycle(duration)
		for i := int64(0); i < errors; i++ {
			e.exporter.RecordEvaluation(true)
		}
	}
}

func (e *TriggerEngine) recordCycleError() {
	e.statsMu.Lock()
	e.stats.EvaluationErrors++
	e.stats.LastEvaluation = time.Now()
	e.statsMu.Unlock()
}

func composeDescription(rule *models.AlertRule, value float64) string {
	unit := ""
	if rule.ThresholdUnit.Valid {
		unit = rule.ThresholdUnit.String
	}
	return fmt.Sprintf("%s is %.2f%s, breaching threshold %s %.2f%s",
		rule.MetricName, value, unit, rule.ThresholdOperator, rule.ThresholdValue, unit)
}

func composeContext(rule *models.AlertRule, value float64) models.RawJSON {
	ctx := map[string]interface{}{
		"metric_source":             string(rule.MetricSource),
		"metric_name":               rule.MetricName,
		"metric_value":              value,
		"threshold_value":           rule.ThresholdValue,
		"threshold_operator":        rule.ThresholdOperator,
		"evaluation_window_minutes": rule.EvaluationWindowMinutes,
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil
	}
	return raw
}
