package nodes

import (
	"context"
	"fmt"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

// HumanReviewRunner transitions the task into human_review_pending and
// tells the executor to stop after checkpointing rather than treat the
// suspension as terminal completion. Resolution happens out
// of band: an external caller supplies a domain.ReviewDecision, folded in
// via resolve when the workflow is resumed.
type HumanReviewRunner struct {
	Factory *repo.Factory
}

func (n *HumanReviewRunner) Run(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	// A decision seq ahead of the last one this node handled means this is
	// the resume call after Review() was invoked externally: fold it in
	// and move on instead of re-suspending.
	if state.ReviewDecisionSeq > state.ReviewHandledSeq {
		return n.resolve(ctx, state)
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
	task.Status = domain.TaskHumanReviewPending
	task.CurrentStep = domain.StepHumanReview
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
			CurrentStep: domain.StepHumanReview,
			Suspended:   true,
		},
		Route: graph.Stop(),
	}
}

// resolve interprets an externally supplied ReviewDecision. Approve marks
// ReviewDone and lets the router advance to content generation. Reject
// marks the task terminal. Edit folds the supplied notes back into the
// framework's issue list and routes through another edit cycle, the same
// path a failed validation would take. Every branch stamps ReviewHandledSeq
// so a later resume with a stale state doesn't re-apply the same decision.
func (n *HumanReviewRunner) resolve(ctx context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	switch state.ReviewDecision {
	case domain.DecisionApprove:
		scope, err := n.Factory.Begin(ctx)
		if err != nil {
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		if err := scope.Tasks.UpdateStatus(ctx, state.TaskID, domain.TaskProcessing, domain.StepHumanReview); err != nil {
			_ = scope.Rollback()
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		if err := scope.Commit(); err != nil {
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		return graph.NodeResult[domain.RoadmapState]{
			Delta: domain.RoadmapState{
				TaskID:           state.TaskID,
				ReviewDone:       true,
				ReviewHandledSeq: state.ReviewDecisionSeq,
				CurrentStep:      domain.StepHumanReview,
			},
			Route: graph.Goto(string(workflow.StepGotoContent)),
		}

	case domain.DecisionReject:
		scope, err := n.Factory.Begin(ctx)
		if err != nil {
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		if err := scope.Tasks.UpdateStatus(ctx, state.TaskID, domain.TaskRejected, domain.StepHumanReview); err != nil {
			_ = scope.Rollback()
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		if err := scope.Commit(); err != nil {
			return graph.NodeResult[domain.RoadmapState]{Err: &workflow.TransientError{Cause: err}}
		}
		return graph.NodeResult[domain.RoadmapState]{
			Delta: domain.RoadmapState{
				TaskID:           state.TaskID,
				ReviewDone:       true,
				ReviewHandledSeq: state.ReviewDecisionSeq,
				Done:             true,
				FinalStatus:      domain.TaskRejected,
				CurrentStep:      domain.StepHumanReview,
			},
			Route: graph.Stop(),
		}

	case domain.DecisionEdit:
		issues := state.ValidationIssues
		if state.ReviewNotes != "" {
			issues = append(append([]string{}, issues...), "reviewer: "+state.ReviewNotes)
		}
		return graph.NodeResult[domain.RoadmapState]{
			Delta: domain.RoadmapState{
				TaskID:           state.TaskID,
				ValidationIssues: issues,
				ValidationPassed: false,
				ValidatedVersion: state.FrameworkVersion,
				ReviewHandledSeq: state.ReviewDecisionSeq,
				CurrentStep:      domain.StepHumanReview,
			},
			Route: graph.Goto(string(workflow.StepGotoEditor)),
		}

	default:
		return graph.NodeResult[domain.RoadmapState]{Err: &workflow.FatalError{Cause: fmt.Errorf("review: unknown decision %q", state.ReviewDecision)}}
	}
}
