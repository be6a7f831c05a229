package websocket

import (
	"context"

	"lotbid/internal/domain"
)

type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyCustomer(ctx context.Context, customerID string, message interface{}) error {
	return n.connManager.NotifyCustomer(customerID, message)
}

func (n *WebSocketNotifier) BroadcastToLot(ctx context.Context, lotID string, message interface{}) error {
	return n.connManager.BroadcastToLot(lotID, message)
}
