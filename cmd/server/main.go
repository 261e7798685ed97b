package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/receiptwise/receiptwise-backend-go/internal/api"
	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/alerting"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/manager"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/metrics"
	"github.com/receiptwise/receiptwise-backend-go/internal/database"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/models"
	"github.com/receiptwise/receiptwise-backend-go/internal/websocket"
	"github.com/receiptwise/receiptwise-backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	repos := database.NewRepositories(db)

	// Create WebSocket hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Prometheus exporter
	var exporter *metrics.PrometheusExporter
	if cfg.Monitoring.Prometheus.Enabled {
		exporter = metrics.NewPrometheusExporter("receiptwise")
	}

	// Health checker feeds the collector and the system_health metric source
	healthChecker := metrics.NewDefaultHealthChecker(db)

	// Metrics collector
	collector := metrics.NewCollector(metrics.CollectorConfig{
		Interval:  config.ParseInterval(cfg.Monitoring.MetricsCollectionInterval, 30*time.Second),
		Retention: config.ParseInterval(cfg.Monitoring.MetricsRetention, 24*time.Hour),
	}, repos.Metrics, healthChecker, exporter, log)

	// Alert trigger engine
	resolver := alerting.NewResolver(repos.Metrics, healthChecker, log)
	guard := alerting.NewGuard(repos.Alert, repos.FailureState, log)
	engine := alerting.NewTriggerEngine(repos.AlertRule, repos.Alert, resolver, guard, exporter, alerting.EngineConfig{
		EvaluationInterval: config.ParseInterval(cfg.Monitoring.AlertEvaluationInterval, 60*time.Second),
	}, log)

	// Push created alerts to subscribed WebSocket clients
	engine.OnAlertCreated(func(alert *models.Alert, rule *models.AlertRule) {
		wsHub.BroadcastToSeverity(string(alert.Severity), websocket.AlertCreatedMessage(alert, rule))
	})

	// Engine manager
	mgr := manager.NewEngineManager(collector, engine, repos.AlertRule, repos.Alert, exporter, cfg.Monitoring, log)

	if cfg.Monitoring.AutoStart {
		if err := mgr.Start(context.Background()); err != nil {
			log.Fatal("Failed to start monitoring system: ", err)
		}
	} else {
		log.Info("Monitoring auto-start disabled, waiting for manual start")
	}

	// Initialize router
	router := api.NewRouter(cfg, repos, mgr, wsHub, healthChecker, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Infof("Starting ReceiptWise backend on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if mgr.IsRunning() {
		if err := mgr.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop monitoring system gracefully")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
