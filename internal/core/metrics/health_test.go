package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDefaultHealthChecker_HealthyDatabase(t *testing.T) {
	checker := NewDefaultHealthChecker(openTestDB(t))

	snapshot, err := checker.PerformHealthCheck(context.Background())
	require.NoError(t, err)

	assert.True(t, snapshot.DatabaseHealthy)
	assert.Equal(t, 100.0, snapshot.HealthScore)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestDefaultHealthChecker_UnreachableDatabase(t *testing.T) {
	db := openTestDB(t)
	checker := NewDefaultHealthChecker(db)
	db.Close()

	snapshot, err := checker.PerformHealthCheck(context.Background())
	require.NoError(t, err)

	assert.False(t, snapshot.DatabaseHealthy)
	assert.Equal(t, 50.0, snapshot.HealthScore)
}

func TestDefaultHealthChecker_PerformanceCounters(t *testing.T) {
	checker := NewDefaultHealthChecker(openTestDB(t))

	// No traffic yet: everything reads zero.
	perf := checker.GetPerformanceMetrics()
	assert.Equal(t, 0.0, perf.APIResponseTime)
	assert.Equal(t, 0.0, perf.ErrorRate)
	assert.Equal(t, 0.0, perf.CacheHitRate)

	checker.RecordRequest(100*time.Millisecond, false)
	checker.RecordRequest(300*time.Millisecond, true)
	checker.RecordCacheLookup(true)
	checker.RecordCacheLookup(true)
	checker.RecordCacheLookup(false)

	perf = checker.GetPerformanceMetrics()
	assert.Equal(t, 200.0, perf.APIResponseTime)
	assert.Equal(t, 50.0, perf.ErrorRate)
	assert.InDelta(t, 66.67, perf.CacheHitRate, 0.01)
}

func TestDefaultHealthChecker_ErrorRateLowersScore(t *testing.T) {
	checker := NewDefaultHealthChecker(openTestDB(t))

	for i := 0; i < 9; i++ {
		checker.RecordRequest(10*time.Millisecond, false)
	}
	checker.RecordRequest(10*time.Millisecond, true)

	snapshot, err := checker.PerformHealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90.0, snapshot.HealthScore)
}
