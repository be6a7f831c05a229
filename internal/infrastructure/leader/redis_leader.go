package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const leaderKey = "settlement_leader"

// Both scripts check ownership first so a node that lost the key to
// expiry cannot touch a successor's leadership.
const (
	ownerDelete = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	ownerExtend = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("EXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, leaderKey, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if acquired {
		go r.maintainLeadership(instanceID)
	}

	return acquired, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	_, err := r.client.Eval(ctx, ownerDelete, []string{leaderKey}, instanceID).Result()
	return err
}

// maintainLeadership refreshes the TTL at a third of its length and stops
// the moment the extend script reports the key is no longer ours.
func (r *RedisLeaderElection) maintainLeadership(instanceID string) {
	ticker := time.NewTicker(refreshInterval(r.ttl))
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		result, err := r.client.Eval(ctx, ownerExtend, []string{leaderKey},
			instanceID, int(r.ttl.Seconds())).Result()

		cancel()

		if err != nil || !extendConfirmed(result) {
			break
		}
	}
}

// refreshInterval is a third of the TTL, floored at one second so a tiny
// or zero TTL never produces an invalid ticker period.
func refreshInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// extendConfirmed reads the extend script's reply. Anything other than an
// integer 1 means the key is gone or no longer ours.
func extendConfirmed(result interface{}) bool {
	n, ok := result.(int64)
	return ok && n == 1
}
