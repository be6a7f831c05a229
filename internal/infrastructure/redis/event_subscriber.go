package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotbid/internal/domain"
	"lotbid/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

func (r *RedisEventSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, "lot_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to lot events")

	for {
		select {
		case msg := <-ch:
			event, err := r.parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "event", event, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func (r *RedisEventSubscriber) parseEventData(payload string) (*domain.BidEvent, error) {
	// Parse "lotID:eventType:customerID:amount:sold:timestamp"
	parts := strings.Split(payload, ":")
	if len(parts) < 6 {
		return nil, fmt.Errorf("invalid event format: %s", payload)
	}

	amount, err := decimal.NewFromString(parts[3])
	if err != nil {
		return nil, err
	}

	sold, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, err
	}

	timestamp, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return nil, err
	}

	return &domain.BidEvent{
		LotID:      parts[0],
		Type:       domain.BidEventType(parts[1]),
		CustomerID: parts[2],
		Amount:     amount,
		Sold:       sold == 1,
		Timestamp:  time.Unix(timestamp, 0),
	}, nil
}
