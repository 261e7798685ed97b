package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// HealthSnapshot is the result of one system health check
type HealthSnapshot struct {
	HealthScore     float64   `json:"health_score"`
	DatabaseHealthy bool      `json:"database_healthy"`
	DatabaseLatency float64   `json:"database_latency_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// PerformanceSnapshot is the current view of API performance counters
type PerformanceSnapshot struct {
	APIResponseTime float64 `json:"api_response_time_ms"`
	ErrorRate       float64 `json:"error_rate"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// HealthChecker is the system-health collaborator the metric resolver and
// collector read from
type HealthChecker interface {
	PerformHealthCheck(ctx context.Context) (*HealthSnapshot, error)
	GetPerformanceMetrics() *PerformanceSnapshot
}

// DefaultHealthChecker derives health numbers from database reachability and
// rolling API request counters fed by the HTTP layer
type DefaultHealthChecker struct {
	db *sqlx.DB
	mu sync.RWMutex

	requestCount   int64
	errorCount     int64
	totalLatencyMs float64
	cacheHits      int64
	cacheLookups   int64
}

// NewDefaultHealthChecker creates a health checker backed by the given database
func NewDefaultHealthChecker(db *sqlx.DB) *DefaultHealthChecker {
	return &DefaultHealthChecker{db: db}
}

// RecordRequest feeds one API request outcome into the rolling counters
func (h *DefaultHealthChecker) RecordRequest(latency time.Duration, isError bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requestCount++
	h.totalLatencyMs += float64(latency.Milliseconds())
	if isError {
		h.errorCount++
	}
}

// RecordCacheLookup feeds one cache lookup outcome into the rolling counters
func (h *DefaultHealthChecker) RecordCacheLookup(hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cacheLookups++
	if hit {
		h.cacheHits++
	}
}

// PerformHealthCheck pings the database and scores overall health
func (h *DefaultHealthChecker) PerformHealthCheck(ctx context.Context) (*HealthSnapshot, error) {
	snapshot := &HealthSnapshot{Timestamp: time.Now().UTC()}

	start := time.Now()
	err := h.db.PingContext(ctx)
	snapshot.DatabaseLatency = float64(time.Since(start).Microseconds()) / 1000
	snapshot.DatabaseHealthy = err == nil

	perf := h.GetPerformanceMetrics()

	// Score starts at 100 and loses points for an unreachable database and
	// elevated error rates.
	score := 100.0
	if !snapshot.DatabaseHealthy {
		score -= 50
	}
	score -= perf.ErrorRate
	if score < 0 {
		score = 0
	}
	snapshot.HealthScore = score

	return snapshot, nil
}

// GetPerformanceMetrics returns the current API performance counters
func (h *DefaultHealthChecker) GetPerformanceMetrics() *PerformanceSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := &PerformanceSnapshot{}
	if h.requestCount > 0 {
		snapshot.APIResponseTime = h.totalLatencyMs / float64(h.requestCount)
		snapshot.ErrorRate = float64(h.errorCount) / float64(h.requestCount) * 100
	}
	if h.cacheLookups > 0 {
		snapshot.CacheHitRate = float64(h.cacheHits) / float64(h.cacheLookups) * 100
	}

	return snapshot
}
