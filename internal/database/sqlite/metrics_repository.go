package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
)

// MetricsRepository implements repositories.MetricsRepository
type MetricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository creates a new MetricsRepository
func NewMetricsRepository(db *sqlx.DB) repositories.MetricsRepository {
	return &MetricsRepository{db: db}
}

// embeddingCounts aggregates embedding job outcomes in one pass
type embeddingCounts struct {
	Total    int `db:"total"`
	Success  int `db:"success"`
	Failed   int `db:"failed"`
	TimedOut int `db:"timed_out"`
}

func (r *MetricsRepository) embeddingCounts(ctx context.Context, teamID string, since time.Time) (*embeddingCounts, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS success,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN status = 'timeout' THEN 1 ELSE 0 END), 0) AS timed_out
		FROM embedding_job_metrics
		WHERE team_id = ? AND created_at >= ?
	`

	var counts embeddingCounts
	if err := r.db.GetContext(ctx, &counts, query, teamID, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate embedding metrics: %w", err)
	}

	return &counts, nil
}

// EmbeddingSuccessRate returns the percentage of successful embedding jobs in
// the window. An empty window reads as 100% success: a rate with no
// denominator is vacuously satisfied.
func (r *MetricsRepository) EmbeddingSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	counts, err := r.embeddingCounts(ctx, teamID, since)
	if err != nil {
		return 0, 0, err
	}
	if counts.Total == 0 {
		return 100, 0, nil
	}
	return float64(counts.Success) / float64(counts.Total) * 100, counts.Total, nil
}

// EmbeddingErrorRate returns the percentage of failed or timed-out embedding
// jobs in the window. An empty window reads as 0%.
func (r *MetricsRepository) EmbeddingErrorRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	counts, err := r.embeddingCounts(ctx, teamID, since)
	if err != nil {
		return 0, 0, err
	}
	if counts.Total == 0 {
		return 0, 0, nil
	}
	return float64(counts.Failed+counts.TimedOut) / float64(counts.Total) * 100, counts.Total, nil
}

// EmbeddingAvgDuration returns the mean job duration in milliseconds,
// excluding rows with no recorded duration. Zero samples means the average is
// undefined; callers must skip evaluation rather than assume a value.
func (r *MetricsRepository) EmbeddingAvgDuration(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(duration_ms), 0) AS avg_ms, COUNT(duration_ms) AS samples
		FROM embedding_job_metrics
		WHERE team_id = ? AND created_at >= ? AND duration_ms IS NOT NULL
	`

	var row struct {
		AvgMs   float64 `db:"avg_ms"`
		Samples int     `db:"samples"`
	}
	if err := r.db.GetContext(ctx, &row, query, teamID, since); err != nil {
		return 0, 0, fmt.Errorf("failed to average embedding durations: %w", err)
	}

	return row.AvgMs, row.Samples, nil
}

// LatestPerformanceValue returns the most recent sample of a named metric
// recorded inside the window
func (r *MetricsRepository) LatestPerformanceValue(ctx context.Context, metricName string, since time.Time) (float64, bool, error) {
	query := `
		SELECT metric_value FROM performance_metrics
		WHERE metric_name = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC LIMIT 1
	`

	var value float64
	err := r.db.GetContext(ctx, &value, query, metricName, since)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latest %s value: %w", metricName, err)
	}

	return value, true, nil
}

// NotificationSuccessRate returns the percentage of delivered notifications in
// the window, 100% when the window is empty
func (r *MetricsRepository) NotificationSuccessRate(ctx context.Context, teamID string, since time.Time) (float64, int, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered
		FROM notification_deliveries
		WHERE team_id = ? AND created_at >= ?
	`

	var row struct {
		Total     int `db:"total"`
		Delivered int `db:"delivered"`
	}
	if err := r.db.GetContext(ctx, &row, query, teamID, since); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate notification deliveries: %w", err)
	}

	if row.Total == 0 {
		return 100, 0, nil
	}
	return float64(row.Delivered) / float64(row.Total) * 100, row.Total, nil
}

// RecordPerformanceMetric stores one collector sample
func (r *MetricsRepository) RecordPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	if metric.RecordedAt.IsZero() {
		metric.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO performance_metrics (team_id, metric_name, metric_value, recorded_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		metric.TeamID, metric.MetricName, metric.MetricValue, metric.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record performance metric %s: %w", metric.MetricName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted metric ID: %w", err)
	}
	metric.ID = int(id)

	return nil
}

// InsertEmbeddingJobMetric stores one embedding pipeline outcome
func (r *MetricsRepository) InsertEmbeddingJobMetric(ctx context.Context, metric *models.EmbeddingJobMetric) error {
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO embedding_job_metrics (team_id, status, duration_ms, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		metric.TeamID, metric.Status, metric.DurationMs, metric.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert embedding job metric: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted metric ID: %w", err)
	}
	metric.ID = int(id)

	return nil
}

// InsertNotificationDelivery stores one notification delivery outcome
func (r *MetricsRepository) InsertNotificationDelivery(ctx context.Context, delivery *models.NotificationDelivery) error {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notification_deliveries (team_id, channel, status, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		delivery.TeamID, delivery.Channel, delivery.Status, delivery.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification delivery: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted delivery ID: %w", err)
	}
	delivery.ID = int(id)

	return nil
}

// PrunePerformanceMetrics deletes collector samples recorded before the cutoff
func (r *MetricsRepository) PrunePerformanceMetrics(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM performance_metrics WHERE recorded_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune performance metrics: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned row count: %w", err)
	}

	return removed, nil
}
