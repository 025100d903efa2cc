package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLeaseStore implements LeaseStore with Redis SET ... NX PX entries,
// grounded on the same *redis.Client construction discipline as
// internal/queue.RedisAdapter: the client is dialed once by the process
// entrypoint and handed in here, never opened by this package.
type RedisLeaseStore struct {
	client *redis.Client
}

// NewRedisLeaseStore wraps an already-configured *redis.Client.
func NewRedisLeaseStore(client *redis.Client) *RedisLeaseStore {
	return &RedisLeaseStore{client: client}
}

func leaseKey(workflowID string) string { return "lease:" + workflowID }

// Acquire attempts a conditional SET NX PX claim. A false, nil return
// means another worker currently holds the lease; this is a normal,
// expected outcome, not an error.
func (l *RedisLeaseStore) Acquire(ctx context.Context, workflowID, workerID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKey(workflowID), workerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("sweeper: acquire lease %s: %w", workflowID, err)
	}
	return ok, nil
}

// Release clears the lease only if it is still held by workerID, so a
// lease that has already expired and been re-acquired by a different
// worker is left untouched.
func (l *RedisLeaseStore) Release(ctx context.Context, workflowID, workerID string) error {
	current, err := l.client.Get(ctx, leaseKey(workflowID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("sweeper: read lease %s: %w", workflowID, err)
	}
	if current != workerID {
		return nil
	}
	if err := l.client.Del(ctx, leaseKey(workflowID)).Err(); err != nil {
		return fmt.Errorf("sweeper: release lease %s: %w", workflowID, err)
	}
	return nil
}
