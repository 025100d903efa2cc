package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// ContentJob is the payload enqueued onto the content queue; the content
// worker process reads it back out of queue.Job.Payload to resume the
// workflow at the content fan-out phase.
type ContentJob struct {
	TaskID    string `json:"task_id"`
	RoadmapID string `json:"roadmap_id"`
}

// ContentRunner enqueues the content-generation job and returns
// immediately with CurrentStep = content_generation_queued; the fan-out
// itself runs as a child workflow on the content worker,
// driven by internal/workflow/content.
type ContentRunner struct {
	Queue   queue.Adapter
	Factory *repo.Factory
}

func (n *ContentRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	if state.Framework == nil || state.RoadmapID == "" {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: fmt.Errorf("content: no framework or roadmap id in state")}}
	}

	payload, err := json.Marshal(ContentJob{TaskID: state.TaskID, RoadmapID: state.RoadmapID})
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: err}}
	}

	jobID, err := n.Queue.Enqueue(ctx, queue.Content, payload)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}

	scope, err := n.Factory.Begin(ctx)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	task, err := scope.Tasks.Get(ctx, state.TaskID)
	if err != nil {
		_ = scope.Rollback()
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	task.CeleryTaskID = jobID
	task.CurrentStep = domain.StepContentGenerationQueued
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		_ = scope.Rollback()
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	if err := scope.Commit(); err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}

	return graph.NodeResult[domain.RoadmapState]{
		Delta: domain.RoadmapState{
			TaskID:      state.TaskID,
			CurrentStep: domain.StepContentGenerationQueued,
			Suspended:   true,
		},
		Route: graph.Stop(),
	}
}
