package alerting

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// resolverFunc fetches the current value of one metric for a rule. ok=false
// means the value is not available this cycle, which is never an error.
type resolverFunc func(ctx context.Context, rule *models.AlertRule, since time.Time) (value float64, ok bool, err error)

// Resolver fetches current metric values for alert rules. Each rule reads one
// named metric from one source over a sliding window ending now.
type Resolver struct {
	metrics  repositories.MetricsRepository
	health   metrics.HealthChecker
	logger   *logrus.Logger
	dispatch map[models.MetricSource]map[string]resolverFunc
}

// NewResolver builds a resolver with its dispatch table. The table is fixed at
// construction so unknown (source, name) pairs can be rejected when rules are
// created, not discovered at evaluation time.
func NewResolver(metricsRepo repositories.MetricsRepository, health metrics.HealthChecker, logger *logrus.Logger) *Resolver {
	r := &Resolver{
		metrics: metricsRepo,
		health:  health,
		logger:  logger,
	}

	r.dispatch = map[models.MetricSource]map[string]resolverFunc{
		models.SourceEmbeddingMetrics: {
			"success_rate": r.embeddingSuccessRate,
			"avg_duration": r.embeddingAvgDuration,
			"error_rate":   r.embeddingErrorRate,
		},
		models.SourcePerformanceMetrics: {}, // any metric name, see Resolve
		models.SourceSystemHealth: {
			"health_score":      r.systemHealth,
			"api_response_time": r.systemHealth,
			"error_rate":        r.systemHealth,
			"cache_hit_rate":    r.systemHealth,
		},
		models.SourceNotificationMetrics: {
			"success_rate": r.notificationSuccessRate,
			"failure_rate": r.notificationFailureRate,
		},
	}

	return r
}

// Supported reports whether a (source, metric name) pair can be resolved.
// Intended for rule validation at creation time.
func (r *Resolver) Supported(source models.MetricSource, metricName string) bool {
	names, ok := r.dispatch[source]
	if !ok {
		return false
	}
	if source == models.SourcePerformanceMetrics {
		return metricName != ""
	}
	_, ok = names[metricName]
	return ok
}

// Resolve fetches the current value of the rule's metric over its evaluation
// window. ok=false means "skip evaluation this cycle": either the data is
// absent in a way that has no defined value, or a collaborator failed. A
// failing rule must never abort the batch, so errors are logged, not returned.
func (r *Resolver) Resolve(ctx context.Context, rule *models.AlertRule) (float64, bool) {
	names, known := r.dispatch[rule.MetricSource]
	if !known {
		r.logger.WithFields(logrus.Fields{
			"rule_id":       rule.ID,
			"metric_source": rule.MetricSource,
		}).Warn("Unknown metric source in alert rule")
		return 0, false
	}

	since := time.Now().UTC().Add(-rule.EvaluationWindow())

	fn := names[rule.MetricName]
	if fn == nil {
		if rule.MetricSource == models.SourcePerformanceMetrics {
			fn = r.latestPerformanceValue
		} else {
			r.logger.WithFields(logrus.Fields{
				"rule_id":       rule.ID,
				"metric_source": rule.MetricSource,
				"metric_name":   rule.MetricName,
			}).Warn("Unknown metric name in alert rule")
			return 0, false
		}
	}

	value, ok, err := fn(ctx, rule, since)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"rule_id":     rule.ID,
			"metric_name": rule.MetricName,
		}).Warn("Failed to resolve metric value")
		return 0, false
	}

	return value, ok
}

// An empty window reads as fully healthy for rate metrics: a rate with no
// denominator is vacuously satisfied.
func (r *Resolver) embeddingSuccessRate(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	rate, _, err := r.metrics.EmbeddingSuccessRate(ctx, rule.TeamID, since)
	return rate, err == nil, err
}

func (r *Resolver) embeddingErrorRate(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	rate, _, err := r.metrics.EmbeddingErrorRate(ctx, rule.TeamID, since)
	return rate, err == nil, err
}

// An average with no samples is undefined, so an empty window skips
// evaluation instead of assuming a value.
func (r *Resolver) embeddingAvgDuration(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	avg, samples, err := r.metrics.EmbeddingAvgDuration(ctx, rule.TeamID, since)
	if err != nil {
		return 0, false, err
	}
	if samples == 0 {
		return 0, false, nil
	}
	return avg, true, nil
}

func (r *Resolver) latestPerformanceValue(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	return r.metrics.LatestPerformanceValue(ctx, rule.MetricName, since)
}

func (r *Resolver) systemHealth(ctx context.Context, rule *models.AlertRule, _ time.Time) (float64, bool, error) {
	switch rule.MetricName {
	case "health_score":
		snapshot, err := r.health.PerformHealthCheck(ctx)
		if err != nil {
			return 0, false, err
		}
		return snapshot.HealthScore, true, nil
	case "api_response_time":
		return r.health.GetPerformanceMetrics().APIResponseTime, true, nil
	case "error_rate":
		return r.health.GetPerformanceMetrics().ErrorRate, true, nil
	case "cache_hit_rate":
		return r.health.GetPerformanceMetrics().CacheHitRate, true, nil
	}
	return 0, false, nil
}

func (r *Resolver) notificationSuccessRate(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	rate, _, err := r.metrics.NotificationSuccessRate(ctx, rule.TeamID, since)
	return rate, err == nil, err
}

func (r *Resolver) notificationFailureRate(ctx context.Context, rule *models.AlertRule, since time.Time) (float64, bool, error) {
	rate, _, err := r.metrics.NotificationSuccessRate(ctx, rule.TeamID, since)
	if err != nil {
		return 0, false, err
	}
	return 100 - rate, true, nil
}
