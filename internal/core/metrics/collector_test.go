package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
)

// recordingMetricsRepo captures collector writes in memory
type recordingMetricsRepo struct {
	mu      sync.Mutex
	samples []*models.PerformanceMetric
	pruned  []time.Time
}

func (r *recordingMetricsRepo) EmbeddingSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 100, 0, nil
}

func (r *recordingMetricsRepo) EmbeddingErrorRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 0, 0, nil
}

func (r *recordingMetricsRepo) EmbeddingAvgDuration(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 0, 0, nil
}

func (r *recordingMetricsRepo) LatestPerformanceValue(ctx context.Context, metricName string, since time.Time) (float64, bool, error) {
	return 0, false, nil
}

func (r *recordingMetricsRepo) NotificationSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	return 100, 0, nil
}

func (r *recordingMetricsRepo) RecordPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, metric)
	return nil
}

func (r *recordingMetricsRepo) InsertEmbeddingJobMetric(ctx context.Context, metric *models.EmbeddingJobMetric) error {
	return nil
}

func (r *recordingMetricsRepo) InsertNotificationDelivery(ctx context.Context, delivery *models.NotificationDelivery) error {
	return nil
}

func (r *recordingMetricsRepo) PrunePerformanceMetrics(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, before)
	return 0, nil
}

func (r *recordingMetricsRepo) sampleNames() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[string]bool, len(r.samples))
	for _, sample := range r.samples {
		names[sample.MetricName] = true
	}
	return names
}

type staticHealthChecker struct{}

func (staticHealthChecker) PerformHealthCheck(ctx context.Context) (*HealthSnapshot, error) {
	return &HealthSnapshot{HealthScore: 95, DatabaseHealthy: true, DatabaseLatency: 1.5}, nil
}

func (staticHealthChecker) GetPerformanceMetrics() *PerformanceSnapshot {
	return &PerformanceSnapshot{APIResponseTime: 100, ErrorRate: 5, CacheHitRate: 80}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCollector_StartTakesImmediateSnapshot(t *testing.T) {
	repo := &recordingMetricsRepo{}
	collector := NewCollector(CollectorConfig{Interval: time.Minute}, repo, staticHealthChecker{}, nil, quietLogger())

	require.NoError(t, collector.Start(context.Background()))
	defer collector.Stop()

	assert.True(t, collector.IsRunning())

	stats := collector.GetStatistics()
	assert.Equal(t, int64(1), stats.SnapshotsTaken)
	require.NotNil(t, stats.LastCollection)
	require.NotNil(t, stats.StartedAt)

	names := repo.sampleNames()
	for _, want := range []string{"api_response_time", "error_rate", "cache_hit_rate", "health_score", "db_latency_ms"} {
		assert.True(t, names[want], "missing sample %s", want)
	}

	// Retention pruning runs with every snapshot.
	assert.NotEmpty(t, repo.pruned)
}

func TestCollector_StartTwiceFails(t *testing.T) {
	collector := NewCollector(CollectorConfig{Interval: time.Minute}, &recordingMetricsRepo{}, staticHealthChecker{}, nil, quietLogger())

	require.NoError(t, collector.Start(context.Background()))
	defer collector.Stop()

	assert.Error(t, collector.Start(context.Background()))
}

func TestCollector_Stop(t *testing.T) {
	collector := NewCollector(CollectorConfig{Interval: time.Minute}, &recordingMetricsRepo{}, staticHealthChecker{}, nil, quietLogger())

	require.NoError(t, collector.Start(context.Background()))
	require.NoError(t, collector.Stop())
	assert.False(t, collector.IsRunning())

	// Stopping an already stopped collector is a no-op.
	require.NoError(t, collector.Stop())
}

func TestCollector_DefaultConfig(t *testing.T) {
	collector := NewCollector(CollectorConfig{}, &recordingMetricsRepo{}, staticHealthChecker{}, nil, quietLogger())
	assert.Equal(t, 30*time.Second, collector.config.Interval)
	assert.Equal(t, 24*time.Hour, collector.config.Retention)
}
