package redis

import (
	"context"
	"time"

	"lotbid/internal/domain"
	"lotbid/pkg/utils"

	"github.com/go-redis/redis/v8"
)

// ownerRelease deletes the lock key only when this holder still owns it,
// so an expired lock never releases another holder's acquisition.
const ownerRelease = `
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`

type RedisLotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLotLocker(client *redis.Client, ttl time.Duration) *RedisLotLocker {
	return &RedisLotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisLotLocker) Acquire(ctx context.Context, lotID string) (func(), error) {
	key := "lot_lock:" + lotID
	token := utils.GenerateID("lock")

	acquired, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, &domain.ConcurrencyConflictError{LotID: lotID}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.client.Eval(ctx, ownerRelease, []string{key}, token)
	}

	return release, nil
}
