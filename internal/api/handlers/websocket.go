package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/receiptwise/receiptwise-backend-go/internal/websocket"
	"github.com/receiptwise/receiptwise-backend-go/pkg/utils"
)

// WebSocketHandler upgrades the connection and hands it to the hub
func (h *Handlers) WebSocketHandler(hub *websocket.Hub) gin.HandlerFunc {
	return websocket.HandleWebSocketGin(hub)
}

// GetWebSocketStats returns hub connection statistics
func (h *Handlers) GetWebSocketStats(c *gin.Context) {
	utils.SendSuccess(c, h.wsHub.GetStats())
}
