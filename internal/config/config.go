package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MonitoringConfig drives the engine manager and its sub-components
type MonitoringConfig struct {
	AutoStart                 bool             `mapstructure:"auto_start"`
	MetricsCollectionInterval string           `mapstructure:"metrics_collection_interval"`
	AlertEvaluationInterval   string           `mapstructure:"alert_evaluation_interval"`
	HealthCheckInterval       string           `mapstructure:"health_check_interval"`
	EnableMetricsCollection   bool             `mapstructure:"enable_metrics_collection"`
	EnableAlertEvaluation     bool             `mapstructure:"enable_alert_evaluation"`
	EnableHealthMonitoring    bool             `mapstructure:"enable_health_monitoring"`
	MetricsRetention          string           `mapstructure:"metrics_retention"`
	Prometheus                PrometheusConfig `mapstructure:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ParseInterval parses a duration string, falling back when empty or invalid
func ParseInterval(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("security.allowed_origins", "RW_ALLOWED_ORIGINS")
	viper.BindEnv("security.enable_cors", "RW_ENABLE_CORS")
	viper.BindEnv("monitoring.auto_start", "RW_MONITORING_AUTO_START")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3002)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "release")

	// Database defaults
	viper.SetDefault("database.path", "./data/receiptwise.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// Monitoring defaults
	viper.SetDefault("monitoring.auto_start", true)
	viper.SetDefault("monitoring.metrics_collection_interval", "30s")
	viper.SetDefault("monitoring.alert_evaluation_interval", "60s")
	viper.SetDefault("monitoring.health_check_interval", "5m")
	viper.SetDefault("monitoring.enable_metrics_collection", true)
	viper.SetDefault("monitoring.enable_alert_evaluation", true)
	viper.SetDefault("monitoring.enable_health_monitoring", true)
	viper.SetDefault("monitoring.metrics_retention", "24h")
	viper.SetDefault("monitoring.prometheus.enabled", true)
	viper.SetDefault("monitoring.prometheus.path", "/metrics")
}
