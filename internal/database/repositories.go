package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/receiptwise/receiptwise-backend-go/internal/database/repositories"
	"github.com/receiptwise/receiptwise-backend-go/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	AlertRule    repositories.AlertRuleRepository
	Alert        repositories.AlertRepository
	FailureState repositories.FailureStateRepository
	Metrics      repositories.MetricsRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		AlertRule:    sqlite.NewAlertRuleRepository(db),
		Alert:        sqlite.NewAlertRepository(db),
		FailureState: sqlite.NewFailureStateRepository(db),
		Metrics:      sqlite.NewMetricsRepository(db),
	}
}
