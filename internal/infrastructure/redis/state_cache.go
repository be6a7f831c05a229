package redis

import (
	"context"
	"fmt"
	"strconv"

	"lotbid/internal/domain"

	"github.com/go-redis/redis/v8"
)

type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetLotStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	key := fmt.Sprintf("lot:%s:status", lotID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisStateCache) GetLotStatus(ctx context.Context, lotID string) (domain.LotStatus, bool, error) {
	key := fmt.Sprintf("lot:%s:status", lotID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return 0, false, err
	}

	return domain.LotStatus(status), true, nil
}
