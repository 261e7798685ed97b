package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
)

// RequestMetricsMiddleware feeds request latency and error outcomes into the
// health checker so system_health rules see real API numbers
func RequestMetricsMiddleware(health *metrics.DefaultHealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		health.RecordRequest(time.Since(start), c.Writer.Status() >= 500)
	}
}
