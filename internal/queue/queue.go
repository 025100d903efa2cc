// Package queue implements the task queue adapter: two named
// queues, logs and content, with at-least-once delivery. Idempotency is
// the handler's responsibility, guaranteed upstream by the dual-store
// upsert and terminal-monotonicity invariants.
package queue

import (
	"context"
	"errors"
	"time"
)

// Named queues the executor and sweeper enqueue onto.
const (
	Logs    = "logs"
	Content = "content"
)

// Job is a single unit of work pulled off a queue.
type Job struct {
	ID      string
	Queue   string
	Payload []byte
	Attempt int
}

// ErrEmpty is returned by Poll when no job is currently available.
var ErrEmpty = errors.New("queue: empty")

// Adapter is the five-operation contract every queue backend implements.
// Enqueue/Poll/Ack/Nack/Cancel are the full surface; anything richer
// belongs to the backing broker.
type Adapter interface {
	Enqueue(ctx context.Context, queue string, payload []byte) (jobID string, err error)
	Poll(ctx context.Context, queue string) (Job, error)
	Ack(ctx context.Context, queue, jobID string) error
	Nack(ctx context.Context, queue, jobID string, requeueAfter time.Duration) error
	Cancel(ctx context.Context, queue, externalID string) error
}
