package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// CurriculumDesignRunner calls the curriculum architect agent with the
// intent output and the stored user profile, normalizes the returned
// framework's computable fields, and persists it as the structural half
// of the dual-store model.
type CurriculumDesignRunner struct {
	Agent   agent.Agent[agent.CurriculumInput, agent.CurriculumOutput]
	Factory *repo.Factory
}

func (n *CurriculumDesignRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	if state.Intent == nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: fmt.Errorf("curriculum: no intent in state")}}
	}

	profile := domain.UserProfile{UserID: state.UserID}
	if state.Profile != nil {
		profile = *state.Profile
	}

	in := agent.CurriculumInput{
		Intent: agent.IntentOutput{
			Goal:        state.Intent.Goal,
			SkillLevel:  state.Intent.SkillLevel,
			FocusAreas:  state.Intent.FocusAreas,
			TargetWeeks: state.Intent.TargetWeeks,
		},
		Profile: profile,
	}

	out, err := n.Agent.Execute(ctx, in)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: classifyAgentErr(err)}
	}

	framework, err := normalizeFramework(out.Framework, profile.HoursPerWeek)
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.ParseFailureError{Cause: err}}
	}

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
			TaskID:           state.TaskID,
			Framework:        &framework,
			FrameworkVersion: state.FrameworkVersion + 1,
			CurrentStep:      domain.StepCurriculum,
		},
		Route: graph.Goto(string(workflow.StepGotoValidation)),
	}
}

// normalizeFramework round-trips fw through FillComputableFrameworkFields
// so stage order, total_estimated_hours, and recommended_completion_weeks
// are filled in whenever the agent left them at their zero value.
func normalizeFramework(fw domain.Framework, hoursPerWeek float64) (domain.Framework, error) {
	raw, err := json.Marshal(fw)
	if err != nil {
		return domain.Framework{}, fmt.Errorf("curriculum: marshal framework: %w", err)
	}
	filled, err := agent.FillComputableFrameworkFields(raw, hoursPerWeek)
	if err != nil {
		return domain.Framework{}, err
	}
	var out domain.Framework
	if err := json.Unmarshal(filled, &out); err != nil {
		return domain.Framework{}, fmt.Errorf("curriculum: unmarshal normalized framework: %w", err)
	}
	return out, nil
}
