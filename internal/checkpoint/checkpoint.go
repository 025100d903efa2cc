// Package checkpoint wraps the graph engine's generic store.Store[S] with
// the roadmap-specific facade the workflow executor and facade layer use:
// LoadLatestForTask and SaveLabeled/LoadLabeled over a single, fixed state
// type.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/learnpath/roadmapgen/graph/store"
	"github.com/learnpath/roadmapgen/internal/domain"
)

// Store is the narrow surface the executor needs out of the much larger
// graph/store.Store[S] interface. Keeping it narrow means swapping the
// backing implementation (sqlite for dev, mysql for production) never
// touches executor code.
type Store interface {
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state domain.RoadmapState) error
	LoadLatest(ctx context.Context, runID string) (state domain.RoadmapState, step int, err error)
	SaveCheckpoint(ctx context.Context, cpID string, state domain.RoadmapState, step int) error
	LoadCheckpoint(ctx context.Context, cpID string) (state domain.RoadmapState, step int, err error)
}

// ErrNotFound is re-exported so callers don't need to import graph/store
// directly to compare against it.
var ErrNotFound = store.ErrNotFound

// Facade wraps a graph/store.Store[domain.RoadmapState] with roadmap
// naming and a run-id convention of "task:<taskID>".
type Facade struct {
	underlying store.Store[domain.RoadmapState]
}

// New wraps an already-open store.Store[domain.RoadmapState]. It never
// opens a connection itself; callers obtain one via OpenSQLite or
// OpenMySQL first.
func New(s store.Store[domain.RoadmapState]) *Facade {
	return &Facade{underlying: s}
}

// Underlying returns the wrapped store.Store, for callers that manage
// the connection lifecycle directly (recovery sweeper, tests).
func (f *Facade) Underlying() store.Store[domain.RoadmapState] {
	return f.underlying
}

// RunID derives the graph engine's run identifier from a task id.
func RunID(taskID string) string {
	return "task:" + taskID
}

// LoadLatestForTask returns the most recently persisted state for taskID,
// or checkpoint.ErrNotFound if no step has ever been saved for it.
func (f *Facade) LoadLatestForTask(ctx context.Context, taskID string) (domain.RoadmapState, int, error) {
	state, step, err := f.underlying.LoadLatest(ctx, RunID(taskID))
	if err != nil {
		return domain.RoadmapState{}, 0, fmt.Errorf("checkpoint: load latest for task %s: %w", taskID, err)
	}
	return state, step, nil
}

// SaveLabeled saves a named checkpoint, used at the human_review_pending
// suspension point so Resume can look it up by task id without scanning
// step history.
func (f *Facade) SaveLabeled(ctx context.Context, taskID string, state domain.RoadmapState, step int) error {
	if err := f.underlying.SaveCheckpoint(ctx, labelFor(taskID), state, step); err != nil {
		return fmt.Errorf("checkpoint: save labeled checkpoint for task %s: %w", taskID, err)
	}
	return nil
}

// LoadLabeled loads the checkpoint saved by SaveLabeled.
func (f *Facade) LoadLabeled(ctx context.Context, taskID string) (domain.RoadmapState, int, error) {
	state, step, err := f.underlying.LoadCheckpoint(ctx, labelFor(taskID))
	if err != nil {
		return domain.RoadmapState{}, 0, fmt.Errorf("checkpoint: load labeled checkpoint for task %s: %w", taskID, err)
	}
	return state, step, nil
}

func labelFor(taskID string) string {
	return "review:" + taskID
}
