package nodes

import (
	"context"
	"fmt"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// ValidationRunner calls the structure validator agent against the
// current framework and records its verdict. It never persists anything
// itself; the editor node and the router act on the verdict it leaves in
// state.
type ValidationRunner struct {
	Agent agent.Agent[agent.ValidationInput, agent.ValidationOutput]
}

func (n *ValidationRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	if state.Framework == nil {
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: fmt.Errorf("validation: no framework in state")}}
	}

	out, err := n.Agent.Execute(ctx, agent.ValidationInput{Framework: *state.Framework})
	if err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: classifyAgentErr(err)}
	}

	messages := make([]string, 0, len(out.Issues))
	passed := true
	for _, issue := range out.Issues {
		messages = append(messages, issue.Severity+": "+issue.Message)
		if issue.Severity == "high" || issue.Severity == "medium" {
			passed = false
		}
	}

	return graph.NodeResult[domain.RoadmapState]{
		Delta: domain.RoadmapState{
			TaskID:           state.TaskID,
			ValidationIssues: messages,
			ValidationPassed: passed,
			ValidationScore:  out.Score,
			ValidatedVersion: state.FrameworkVersion,
			CurrentStep:      domain.StepValidation,
		},
		Route: graph.Goto(string(workflow.StepGotoEditor)),
	}
}
