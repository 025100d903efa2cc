package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/internal/checkpoint"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/notify"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/statemgr"
	"go.uber.org/zap"
)

// Nodes bundles the six node runners the executor dispatches by
// NextStep, keyed the same way Route's return value names them.
type Nodes struct {
	Intent     graph.Node[domain.RoadmapState]
	Curriculum graph.Node[domain.RoadmapState]
	Validation graph.Node[domain.RoadmapState]
	Editor     graph.Node[domain.RoadmapState]
	Review     graph.Node[domain.RoadmapState]
	Content    graph.Node[domain.RoadmapState]
}

func (n Nodes) byStep(step NextStep) graph.Node[domain.RoadmapState] {
	switch step {
	case StepGotoIntent:
		return n.Intent
	case StepGotoCurriculum:
		return n.Curriculum
	case StepGotoValidation:
		return n.Validation
	case StepGotoEditor:
		return n.Editor
	case StepGotoReview:
		return n.Review
	case StepGotoContent:
		return n.Content
	default:
		return nil
	}
}

// Executor binds the node runners, router, checkpointer, and state
// manager into the roadmap generation graph. The node set and its
// transitions are fixed by Route, and no two runners for the same
// workflow may execute concurrently, so the drive loop below is a
// plain sequential loop over the graph.Node[S]/NodeResult[S] contract.
type Executor struct {
	Nodes      Nodes
	RouterCfg  RouterConfig
	Checkpoint *checkpoint.Facade
	State      *statemgr.Manager
	Factory    *repo.Factory
	Notify     *notify.Bus // optional; nil is a valid no-op bus
	Logger     *zap.Logger
}

// New returns an Executor with DefaultRouterConfig; callers override
// RouterCfg afterward for per-deployment skip flags.
func New(nodes Nodes, cp *checkpoint.Facade, state *statemgr.Manager, factory *repo.Factory, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		Nodes:      nodes,
		RouterCfg:  DefaultRouterConfig(),
		Checkpoint: cp,
		State:      state,
		Factory:    factory,
		Logger:     logger,
	}
}

func (e *Executor) publish(taskID string, kind notify.EventKind, nodeID, message string) {
	if e.Notify == nil {
		return
	}
	e.Notify.Publish(notify.Event{
		WorkflowID: taskID,
		Kind:       kind,
		NodeID:     nodeID,
		Message:    message,
		At:         time.Now(),
	})
}

// Run drives taskID's workflow from initial until it suspends or
// terminates. Callers submitting a fresh Task call Run once; Resume
// continues a previously suspended run.
func (e *Executor) Run(ctx context.Context, taskID string, initial domain.RoadmapState) (domain.RoadmapState, error) {
	return e.drive(ctx, taskID, initial, 0)
}

// Resume continues a workflow suspended at human_review_pending with an
// externally supplied decision. Resuming a workflow whose Task is already
// terminal is a no-op: it returns the checkpointed state unchanged
// rather than re-running anything, since terminal statuses never go
// live again.
func (e *Executor) Resume(ctx context.Context, taskID string, decision domain.ReviewDecision, notes string) (domain.RoadmapState, error) {
	task, err := e.getTask(ctx, taskID)
	if err != nil {
		return domain.RoadmapState{}, err
	}
	if task.Status.Terminal() {
		state, _, loadErr := e.Checkpoint.LoadLatestForTask(ctx, taskID)
		if loadErr != nil {
			return domain.RoadmapState{Done: true, FinalStatus: task.Status}, nil
		}
		return state, nil
	}

	state, step, err := e.Checkpoint.LoadLabeled(ctx, taskID)
	if err != nil {
		state, step, err = e.Checkpoint.LoadLatestForTask(ctx, taskID)
		if err != nil {
			return domain.RoadmapState{}, fmt.Errorf("workflow: resume %s: no checkpoint: %w", taskID, err)
		}
	}

	state.ReviewDecision = decision
	state.ReviewNotes = notes
	state.ReviewDecisionSeq++
	state.Suspended = false

	return e.drive(ctx, taskID, state, step+1)
}

func (e *Executor) getTask(ctx context.Context, taskID string) (domain.Task, error) {
	scope, err := e.Factory.Begin(ctx)
	if err != nil {
		return domain.Task{}, fmt.Errorf("workflow: begin: %w", err)
	}
	defer scope.Rollback()
	return scope.Tasks.Get(ctx, taskID)
}

// drive is the main loop: Route -> node.Run -> reduce -> checkpoint ->
// loop, with HandleNodeExecution wrapping every node invocation.
func (e *Executor) drive(ctx context.Context, taskID string, state domain.RoadmapState, startStep int) (domain.RoadmapState, error) {
	runID := checkpoint.RunID(taskID)
	step := startStep

	for {
		next := Route(state, e.RouterCfg)
		if next == StepEnd {
			return e.finalize(ctx, taskID, state)
		}

		node := e.Nodes.byStep(next)
		if node == nil {
			return state, fmt.Errorf("workflow: no node registered for step %q", next)
		}

		e.State.Set(taskID, string(next))
		e.publish(taskID, notify.NodeStarted, string(next), "")

		prevState := state
		newState, err := HandleNodeExecution(ctx, string(next), state, func() (domain.RoadmapState, error) {
			result := node.Run(ctx, prevState)
			if result.Err != nil {
				return domain.RoadmapState{}, result.Err
			}
			return domain.ReduceRoadmapState(prevState, result.Delta), nil
		})
		if err != nil {
			e.publish(taskID, notify.NodeFailed, string(next), err.Error())
			return e.fail(ctx, taskID, prevState, next, err)
		}
		state = newState
		e.publish(taskID, notify.NodeCompleted, string(next), "")

		step++
		if err := e.Checkpoint.Underlying().SaveStep(ctx, runID, step, string(next), state); err != nil {
			return state, fmt.Errorf("workflow: save step %d for %s: %w", step, taskID, err)
		}

		if state.Suspended {
			if state.CurrentStep == domain.StepHumanReview {
				if err := e.Checkpoint.SaveLabeled(ctx, taskID, state, step); err != nil {
					return state, err
				}
			}
			e.publish(taskID, notify.WorkflowSuspended, string(next), "")
			return state, nil
		}
	}
}

// fail classifies the terminating error's kind and writes the matching
// terminal Task status: ValidationFailure and Fatal become failed;
// Cancelled leaves status untouched beyond recording the cancellation.
func (e *Executor) fail(ctx context.Context, taskID string, state domain.RoadmapState, step NextStep, cause error) (domain.RoadmapState, error) {
	kind := Classify(cause)

	scope, err := e.Factory.Begin(ctx)
	if err != nil {
		return state, fmt.Errorf("workflow: fail handler begin: %w", err)
	}
	task, err := scope.Tasks.Get(ctx, taskID)
	if err != nil {
		_ = scope.Rollback()
		return state, err
	}

	if kind != KindCancelled {
		task.Status = domain.TaskFailed
	}
	task.ErrorPayload = []byte(fmt.Sprintf(`{"kind":%q,"step":%q,"error":%q}`, kind, step, cause.Error()))
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		_ = scope.Rollback()
		return state, err
	}
	if err := scope.Commit(); err != nil {
		return state, err
	}

	state.Done = true
	state.FinalStatus = task.Status
	state.ErrorKind = string(kind)
	state.ErrorDetail = cause.Error()
	return state, cause
}

// finalize marks the run completed once the router has nothing left to
// route (rule 7). A content-bearing run never reaches this point: the
// content node suspends the workflow after enqueuing its job, and the
// content worker resolves completed/partial_failure/failed itself from
// the per-artifact outcomes (cmd/contentworker). The executor finalizes
// only runs whose config skips content generation, and those have no
// artifact outcomes to weigh.
func (e *Executor) finalize(ctx context.Context, taskID string, state domain.RoadmapState) (domain.RoadmapState, error) {
	status := domain.TaskCompleted

	scope, err := e.Factory.Begin(ctx)
	if err != nil {
		return state, fmt.Errorf("workflow: finalize begin: %w", err)
	}
	if err := scope.Tasks.UpdateStatus(ctx, taskID, status, domain.StepDone); err != nil {
		_ = scope.Rollback()
		return state, err
	}
	if err := scope.Commit(); err != nil {
		return state, err
	}

	state.Done = true
	state.FinalStatus = status
	e.State.Delete(taskID)
	e.publish(taskID, notify.WorkflowCompleted, "", string(status))
	return state, nil
}
