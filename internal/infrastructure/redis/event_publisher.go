package redis

import (
	"context"
	"fmt"

	"lotbid/internal/domain"

	"github.com/go-redis/redis/v8"
)

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	sold := 0
	if event.Sold {
		sold = 1
	}

	// Amounts travel as decimal strings to round-trip exactly.
	eventData := fmt.Sprintf("%s:%s:%s:%s:%d:%d",
		event.LotID, event.Type, event.CustomerID,
		event.Amount.String(), sold, event.Timestamp.Unix())

	return r.client.Publish(ctx, "lot_events", eventData).Err()
}
