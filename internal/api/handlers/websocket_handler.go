package handlers

import (
	"lotbid/internal/domain"
	"lotbid/internal/infrastructure/websocket"
	"lotbid/internal/services"
	"lotbid/pkg/logger"

	"github.com/labstack/echo/v4"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(bidService *services.BidService, lotRepo domain.LotRepository,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(bidService, lotRepo, connManager, log),
	}
}

func (h *WebSocketHandlers) HandleConnection(c echo.Context) error {
	h.wsHandler.HandleConnection(c.Response(), c.Request(), c.Param("id"))
	return nil
}
