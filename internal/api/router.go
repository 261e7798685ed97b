package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/api/handlers"
	"github.com/receiptwise/receiptwise-backend-go/internal/api/middleware"
	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/manager"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database"
	"github.com/receiptwise/receiptwise-backend-go/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, repos *database.Repositories, mgr *manager.EngineManager, wsHub *websocket.Hub, healthChecker *metrics.DefaultHealthChecker, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.ErrorResponseMiddleware(logger))
	router.Use(middleware.RequestMetricsMiddleware(healthChecker))
	if cfg.Security.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))
	}

	h := handlers.NewHandlers(cfg, repos, mgr, wsHub, logger)

	// Public routes
	router.GET("/health", h.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		router.GET(cfg.Monitoring.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	// WebSocket endpoint
	router.GET("/ws", h.WebSocketHandler(wsHub))
	router.GET("/ws/stats", h.GetWebSocketStats)

	// API v1 routes
	api := router.Group("/api/v1")
	{
		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/status", h.GetMonitoringStatus)
			monitoring.POST("/start", h.StartMonitoring)
			monitoring.POST("/stop", h.StopMonitoring)
			monitoring.POST("/restart", h.RestartMonitoring)
			monitoring.POST("/evaluate", h.ForceEvaluation)
			monitoring.POST("/rules/:id/evaluate", h.ForceRuleEvaluation)
			monitoring.GET("/activity", h.GetRecentActivity)
			monitoring.GET("/config", h.GetMonitoringConfig)
			monitoring.PUT("/config", h.UpdateMonitoringConfig)
		}

		api.GET("/alerts", h.GetAlerts)
	}

	return router
}
