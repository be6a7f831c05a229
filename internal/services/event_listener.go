package services

import (
	"context"
	"fmt"

	"lotbid/internal/domain"
	"lotbid/pkg/logger"
)

// EventListener fans accepted-bid and settlement events out to the
// WebSocket connections watching each lot.
type EventListener struct {
	broadcaster       domain.LotBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.LotBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.handleBidEvent)
}

func (el *EventListener) handleBidEvent(event *domain.BidEvent) error {
	el.log.Info("Handling bid event", "type", event.Type, "lot_id", event.LotID)

	switch event.Type {
	case domain.BidAccepted:
		return el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
			"type":           "bid_update",
			"current_bid":    event.Amount,
			"current_winner": event.CustomerID,
			"timestamp":      event.Timestamp,
		})
	case domain.BidCancelled:
		return el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
			"type":        "bid_cancelled",
			"current_bid": event.Amount,
			"timestamp":   event.Timestamp,
		})
	case domain.LotExtended:
		return el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
			"type":      "lot_extended",
			"timestamp": event.Timestamp,
		})
	case domain.LotSettled:
		return el.handleLotSettled(event)
	}

	return fmt.Errorf("unknown event type %+v", *event)
}

func (el *EventListener) handleLotSettled(event *domain.BidEvent) error {
	if err := el.broadcaster.BroadcastToLot(context.Background(), event.LotID, map[string]interface{}{
		"type":        "lot_settled",
		"sold":        event.Sold,
		"final_price": event.Amount,
		"winner":      event.CustomerID,
		"timestamp":   event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast settlement", "lot_id", event.LotID, "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.LotID); err != nil {
		el.log.Error("Failed to finalize connections for lot", "lot_id", event.LotID, "error", err)
		return err
	}
	return nil
}
