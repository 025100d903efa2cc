// Package nodes implements the six workflow node runners: one
// file per runner, each taking the accumulated domain.RoadmapState and
// returning the patch (delta) it produced, in the style of the
// examples/multi-llm-review/workflow node shape (struct with dependency
// fields, one Run method, graph.NodeResult[S] return value).
package nodes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/graph/model/google"
	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// IntentAnalysisRunner calls the intent analyzer agent and persists
// IntentAnalysisMetadata (upsert by task_id), assigning a roadmap_id the
// first time it runs for a task.
type IntentAnalysisRunner struct {
	Agent   agent.Agent[agent.IntentInput, agent.IntentOutput]
	Factory *repo.Factory
}

// Run implements graph.Node[domain.RoadmapState].
func (n *IntentAnalysisRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	out, err := n.Agent.Execute(ctx, agent.IntentInput{UserRequest: string(state.RawRequest)})
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: classifyAgentErr(err)}
	}

	intent := domain.IntentAnalysisMetadata{
		TaskID:      state.TaskID,
		Goal:        out.Goal,
		SkillLevel:  out.SkillLevel,
		FocusAreas:  out.FocusAreas,
		TargetWeeks: out.TargetWeeks,
	}

	roadmapID := state.RoadmapID
	if roadmapID == "" {
		roadmapID = newRoadmapID()
	}

	scope, err := n.Factory.Begin(ctx)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	if err := scope.Intents.Upsert(ctx, intent); err != nil {
		_ = scope.Rollback()
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	task, err := scope.Tasks.Get(ctx, state.TaskID)
	if err != nil {
		_ = scope.Rollback()
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	task.Status = domain.TaskProcessing
	task.CurrentStep = domain.StepIntent
	task.RoadmapID = &roadmapID
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
			RoadmapID:   roadmapID,
			Intent:      &intent,
			CurrentStep: domain.StepIntent,
		},
		Route: graph.Goto(string(workflow.StepGotoCurriculum)),
	}
}

// classifyAgentErr wraps an agent error in the matching workflow error
// kind: agent.ErrParseFailure is ParseFailure, a Gemini safety-filter
// rejection is ValidationFailure (retrying the identical prompt against
// the same filter is pointless, so it doesn't get Transient's retries),
// everything else defaults to Transient since the overwhelming majority
// of agent.Execute failures are network/provider-side.
func classifyAgentErr(err error) error {
	var parseErr *agent.ErrParseFailure
	if errors.As(err, &parseErr) {
		return &workflow.ParseFailureError{Cause: err}
	}
	var safetyErr *google.SafetyFilterError
	if errors.As(err, &safetyErr) {
		return &workflow.ValidationFailureError{Cause: err}
	}
	return &workflow.TransientError{Cause: err}
}

// newRoadmapID generates a fresh roadmap id the first time intent
// analysis runs for a task, using github.com/google/uuid for
// run/batch identifiers.
func newRoadmapID() string {
	return uuid.NewString()
}
