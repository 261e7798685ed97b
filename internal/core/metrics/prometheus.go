package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exposes engine and collector counters as Prometheus
// metrics, served on the operational API's /metrics endpoint
type PrometheusExporter struct {
	prefix string

	rulesEvaluated   prometheus.Counter
	alertsTriggered  *prometheus.CounterVec
	evaluationErrors prometheus.Counter
	cycleDuration    prometheus.Histogram
	snapshotsTaken   prometheus.Counter
	openAlerts       prometheus.Gauge
}

// NewPrometheusExporter creates the exporter and registers its metrics with
// the default registry
func NewPrometheusExporter(prefix string) *PrometheusExporter {
	if prefix == "" {
		prefix = "receiptwise"
	}

	return &PrometheusExporter{
		prefix: prefix,
		rulesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_alert_rules_evaluated_total",
			Help: "Total number of alert rule evaluations",
		}),
		alertsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		}, []string{"severity"}),
		evaluationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_alert_evaluation_errors_total",
			Help: "Total number of rule evaluation errors",
		}),
		cycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_alert_evaluation_cycle_seconds",
			Help:    "Duration of full alert evaluation cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		snapshotsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_metric_snapshots_total",
			Help: "Total number of metric snapshots collected",
		}),
		openAlerts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_open_alerts",
			Help: "Number of currently open (active or acknowledged) alerts",
		}),
	}
}

// RecordEvaluation records one rule evaluation outcome
func (e *PrometheusExporter) RecordEvaluation(isError bool) {
	e.rulesEvaluated.Inc()
	if isError {
		e.evaluationErrors.Inc()
	}
}

// RecordAlertTriggered records one triggered alert
func (e *PrometheusExporter) RecordAlertTriggered(severity string) {
	e.alertsTriggered.WithLabelValues(severity).Inc()
}

// RecordCycle records the duration of one full evaluation cycle
func (e *PrometheusExporter) RecordCycle(duration time.Duration) {
	e.cycleDuration.Observe(duration.Seconds())
}

// RecordSnapshot records one collector snapshot
func (e *PrometheusExporter) RecordSnapshot() {
	e.snapshotsTaken.Inc()
}

// SetOpenAlerts sets the open alert gauge
func (e *PrometheusExporter) SetOpenAlerts(count int) {
	e.openAlerts.Set(float64(count))
}
