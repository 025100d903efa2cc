package nodes

import (
	"context"
	"fmt"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// EditorRunner revises the framework to address the issues the last
// validation pass found, persists the revision, and increments the edit
// cycle counter the router caps at RouterConfig.MaxEditCycles.
type EditorRunner struct {
	Agent   agent.Agent[agent.EditorInput, agent.EditorOutput]
	Factory *repo.Factory
}

func (n *EditorRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	if state.Framework == nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: fmt.Errorf("editor: no framework in state")}}
	}

	issues := make([]agent.ValidationIssue, 0, len(state.ValidationIssues))
	for _, msg := range state.ValidationIssues {
		issues = append(issues, agent.ValidationIssue{Message: msg})
	}

	out, err := n.Agent.Execute(ctx, agent.EditorInput{Framework: *state.Framework, Issues: issues})
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: classifyAgentErr(err)}
	}
	framework := out.Framework

	scope, err := n.Factory.Begin(ctx)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	roadmap := domain.RoadmapMetadata{
		RoadmapID: state.RoadmapID,
		TaskID:    state.TaskID,
		UserID:    state.UserID,
		Framework: framework,
	}
	if err := scope.Roadmaps.Upsert(ctx, roadmap); err != nil {
		_ = scope.Rollback()
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}
	if err := scope.Commit(); err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
	}

	return graph.NodeResult[domain.RoadmapState]{
		Delta: domain.RoadmapState{
			TaskID:    state.TaskID,
			Framework: &framework,
			// Bumping FrameworkVersion without touching ValidatedVersion
			// makes the router (rule 3) send the workflow back through
			// validation before another edit cycle is considered.
			FrameworkVersion: state.FrameworkVersion + 1,
			EditCycles:       state.EditCycles + 1,
			CurrentStep:      domain.StepEditor,
		},
		Route: graph.Goto(string(workflow.StepGotoValidation)),
	}
}
