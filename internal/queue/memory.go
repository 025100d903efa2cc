package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAdapter is an in-process Adapter backed by a map of slices, for
// tests and single-process development runs. Modeled on
// graph/store.MemStore's lock-protected map idiom.
type MemoryAdapter struct {
	mu       sync.Mutex
	queues   map[string][]Job
	inFlight map[string]Job // jobID -> job, removed on Ack
	cancelled map[string]bool
}

// NewMemoryAdapter returns an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		queues:    make(map[string][]Job),
		inFlight:  make(map[string]Job),
		cancelled: make(map[string]bool),
	}
}

func (a *MemoryAdapter) Enqueue(_ context.Context, queue string, payload []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	a.queues[queue] = append(a.queues[queue], Job{ID: id, Queue: queue, Payload: payload})
	return id, nil
}

func (a *MemoryAdapter) Poll(_ context.Context, queue string) (Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	jobs := a.queues[queue]
	for i, job := range jobs {
		if a.cancelled[job.ID] {
			continue
		}
		a.queues[queue] = append(jobs[:i:i], jobs[i+1:]...)
		job.Attempt++
		a.inFlight[job.ID] = job
		return job, nil
	}
	return Job{}, ErrEmpty
}

func (a *MemoryAdapter) Ack(_ context.Context, _, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, jobID)
	return nil
}

func (a *MemoryAdapter) Nack(_ context.Context, queue, jobID string, requeueAfter time.Duration) error {
	a.mu.Lock()
	job, ok := a.inFlight[jobID]
	delete(a.inFlight, jobID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("queue: nack unknown job %s", jobID)
	}

	if requeueAfter <= 0 {
		a.mu.Lock()
		a.queues[queue] = append(a.queues[queue], job)
		a.mu.Unlock()
		return nil
	}

	go func() {
		time.Sleep(requeueAfter)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.queues[queue] = append(a.queues[queue], job)
	}()
	return nil
}

func (a *MemoryAdapter) Cancel(_ context.Context, _, externalID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled[externalID] = true
	return nil
}
