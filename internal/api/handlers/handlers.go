package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/internal/config"
	"github.com/receiptwise/receiptwise-backend-go/internal/core/manager"
	"github.com/receiptwise/receiptwise-backend-go/internal/database"
	"github.com/receiptwise/receiptwise-backend-go/internal/websocket"
)

// Handlers holds the shared dependencies for all HTTP handlers
type Handlers struct {
	cfg     *config.Config
	repos   *database.Repositories
	manager *manager.EngineManager
	wsHub   *websocket.Hub
	logger  *logrus.Logger
}

// NewHandlers creates the handler set
func NewHandlers(cfg *config.Config, repos *database.Repositories, mgr *manager.EngineManager, wsHub *websocket.Hub, logger *logrus.Logger) *Handlers {
	return &Handlers{
		cfg:     cfg,
		repos:   repos,
		manager: mgr,
		wsHub:   wsHub,
		logger:  logger,
	}
}
