package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// CollectorConfig contains metrics collector configuration
type CollectorConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// CollectorStatistics are the collector's in-memory counters, reset on restart
type CollectorStatistics struct {
	SnapshotsTaken   int64      `json:"snapshots_taken"`
	CollectionErrors int64      `json:"collection_errors"`
	LastCollection   *time.Time `json:"last_collection,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
}

// Collector periodically snapshots system and API metrics into the
// performance metrics store so alert rules can be evaluated against them
type Collector struct {
	config   CollectorConfig
	metrics  repositories.MetricsRepository
	health   HealthChecker
	exporter *PrometheusExporter
	logger   *logrus.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.RWMutex
	running bool
	stats   CollectorStatistics
}

// NewCollector creates a metrics collector. The exporter may be nil when
// Prometheus metrics are disabled.
func NewCollector(config CollectorConfig, metrics repositories.MetricsRepository, health HealthChecker, exporter *PrometheusExporter, logger *logrus.Logger) *Collector {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Retention <= 0 {
		config.Retention = 24 * time.Hour
	}

	return &Collector{
		config:   config,
		metrics:  metrics,
		health:   health,
		exporter: exporter,
		logger:   logger,
	}
}

// Start schedules periodic collection. One snapshot is taken synchronously so
// rules have data to read as soon as the engine starts.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("metrics collector is already running")
	}

	c.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	entryID, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.config.Interval), func() {
		c.collect(context.Background())
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to schedule metrics collection: %w", err)
	}
	c.entryID = entryID

	now := time.Now().UTC()
	c.stats = CollectorStatistics{StartedAt: &now}
	c.running = true
	c.cron.Start()
	c.mu.Unlock()

	c.collect(ctx)

	c.logger.WithField("interval", c.config.Interval.String()).Info("Metrics collector started")
	return nil
}

// Stop halts the collection schedule
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	stopCtx := c.cron.Stop()
	<-stopCtx.Done()

	c.running = false
	c.logger.Info("Metrics collector stopped")
	return nil
}

// IsRunning reports whether the collector is active
func (c *Collector) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// GetStatistics returns a copy of the collector's counters
func (c *Collector) GetStatistics() CollectorStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// collect takes one snapshot of system and API metrics
func (c *Collector) collect(ctx context.Context) {
	samples := c.gatherSamples(ctx)

	var failed bool
	for name, value := range samples {
		metric := &models.PerformanceMetric{MetricName: name, MetricValue: value}
		if err := c.metrics.RecordPerformanceMetric(ctx, metric); err != nil {
			c.logger.WithError(err).WithField("metric", name).Warn("Failed to record metric sample")
			failed = true
		}
	}

	if _, err := c.metrics.PrunePerformanceMetrics(ctx, time.Now().UTC().Add(-c.config.Retention)); err != nil {
		c.logger.WithError(err).Warn("Failed to prune old metric samples")
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.stats.SnapshotsTaken++
	c.stats.LastCollection = &now
	if failed {
		c.stats.CollectionErrors++
	}
	c.mu.Unlock()

	if c.exporter != nil {
		c.exporter.RecordSnapshot()
	}

	c.logger.WithField("samples", len(samples)).Debug("Metrics snapshot collected")
}

// gatherSamples assembles the named metric values for one snapshot
func (c *Collector) gatherSamples(ctx context.Context) map[string]float64 {
	samples := make(map[string]float64)

	perf := c.health.GetPerformanceMetrics()
	samples["api_response_time"] = perf.APIResponseTime
	samples["error_rate"] = perf.ErrorRate
	samples["cache_hit_rate"] = perf.CacheHitRate

	if snapshot, err := c.health.PerformHealthCheck(ctx); err == nil {
		samples["health_score"] = snapshot.HealthScore
		samples["db_latency_ms"] = snapshot.DatabaseLatency
	} else {
		c.logger.WithError(err).Warn("Health check failed during collection")
		c.mu.Lock()
		c.stats.CollectionErrors++
		c.mu.Unlock()
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		samples["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		samples["memory_percent"] = vm.UsedPercent
	}

	return samples
}
