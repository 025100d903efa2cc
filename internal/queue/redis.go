package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// consumerGroup is the single Redis Streams consumer group every worker
// process joins; XREADGROUP gives at-least-once delivery across workers
// polling the same named queue concurrently.
const consumerGroup = "roadmapgen-workers"

const payloadField = "payload"

// RedisAdapter implements Adapter over Redis Streams (XADD/XREADGROUP/
// XACK), the only queue backend intended for production use.
// Grounded on kubernaut's redis client construction style
// (NewClient(opts, logger), connection established lazily rather than
// inside the constructor).
type RedisAdapter struct {
	client   *redis.Client
	logger   *zap.Logger
	consumer string
}

// NewRedisAdapter wraps an already-configured *redis.Client. It never
// dials; callers construct the client (e.g. redis.NewClient(opts)) and
// pass it in, consistent with the checkpoint and repo packages' explicit-
// open-not-in-constructor discipline.
func NewRedisAdapter(client *redis.Client, logger *zap.Logger) *RedisAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAdapter{client: client, logger: logger, consumer: uuid.NewString()}
}

func streamKey(queue string) string { return "queue:" + queue }

func cancelledKey(queue string) string { return "queue:" + queue + ":cancelled" }

// EnsureGroup creates the consumer group for queue if it doesn't already
// exist. Process entrypoints call this once per queue at startup, before
// the first Poll.
func (a *RedisAdapter) EnsureGroup(ctx context.Context, queue string) error {
	err := a.client.XGroupCreateMkStream(ctx, streamKey(queue), consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: ensure group for %s: %w", queue, err)
	}
	return nil
}

func (a *RedisAdapter) Enqueue(ctx context.Context, queue string, payload []byte) (string, error) {
	id, err := a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(queue),
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: enqueue to %s: %w", queue, err)
	}
	return id, nil
}

func (a *RedisAdapter) Poll(ctx context.Context, queue string) (Job, error) {
	res, err := a.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: a.consumer,
		Streams:  []string{streamKey(queue), ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("queue: poll %s: %w", queue, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return Job{}, ErrEmpty
	}

	msg := res[0].Messages[0]
	cancelled, err := a.client.SIsMember(ctx, cancelledKey(queue), msg.ID).Result()
	if err != nil {
		a.logger.Warn("queue: cancel check failed", zap.String("queue", queue), zap.Error(err))
	}
	if cancelled {
		_ = a.client.XAck(ctx, streamKey(queue), consumerGroup, msg.ID).Err()
		return a.Poll(ctx, queue)
	}

	payload, _ := msg.Values[payloadField].(string)
	pending, err := a.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey(queue),
		Group:  consumerGroup,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	attempt := 1
	if err == nil && len(pending) == 1 {
		attempt = int(pending[0].RetryCount) + 1
	}

	return Job{ID: msg.ID, Queue: queue, Payload: []byte(payload), Attempt: attempt}, nil
}

func (a *RedisAdapter) Ack(ctx context.Context, queue, jobID string) error {
	if err := a.client.XAck(ctx, streamKey(queue), consumerGroup, jobID).Err(); err != nil {
		return fmt.Errorf("queue: ack %s/%s: %w", queue, jobID, err)
	}
	return nil
}

// Nack leaves the message in the consumer group's pending entries list if
// requeueAfter is zero; this adapter never reclaims pending entries, so
// such a message is not redelivered by Poll. Otherwise it acks the
// original delivery and re-adds a fresh entry after the delay.
func (a *RedisAdapter) Nack(ctx context.Context, queue, jobID string, requeueAfter time.Duration) error {
	if requeueAfter <= 0 {
		return nil
	}

	entries, err := a.client.XRange(ctx, streamKey(queue), jobID, jobID).Result()
	if err != nil || len(entries) == 0 {
		return fmt.Errorf("queue: nack %s/%s: lookup failed: %w", queue, jobID, err)
	}
	payload, _ := entries[0].Values[payloadField].(string)

	if err := a.client.XAck(ctx, streamKey(queue), consumerGroup, jobID).Err(); err != nil {
		return fmt.Errorf("queue: nack %s/%s: ack: %w", queue, jobID, err)
	}

	go func() {
		time.Sleep(requeueAfter)
		bgCtx := context.Background()
		if _, err := a.Enqueue(bgCtx, queue, []byte(payload)); err != nil {
			a.logger.Error("queue: delayed requeue failed", zap.String("queue", queue), zap.Error(err))
		}
	}()
	return nil
}

// Cancel marks externalID (a stream entry id) so a subsequent Poll skips
// and acks it rather than delivering it. The cancel-set entry carries no
// TTL of its own; operators trim it alongside normal stream trimming.
func (a *RedisAdapter) Cancel(ctx context.Context, queue, externalID string) error {
	if err := a.client.SAdd(ctx, cancelledKey(queue), externalID).Err(); err != nil {
		return fmt.Errorf("queue: cancel %s/%s: %w", queue, externalID, err)
	}
	return nil
}
