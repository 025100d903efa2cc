// Package facade implements the request-handler façade: the single
// Go-level entry point every external collaborator (an HTTP layer, a
// CLI, a test) drives the system through. It exposes no HTTP bytes of
// its own, only the six request operations.
package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/notify"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
	"github.com/learnpath/roadmapgen/internal/workflow/nodes"
)

// Status is the projected view GetStatus returns: the Task row plus a
// coarse progress count, never the full accumulated RoadmapState.
type Status struct {
	TaskID      string
	Status      domain.TaskStatus
	CurrentStep domain.WorkflowStep
	RoadmapID   string
	ErrorDetail string
}

// Facade binds the executor, repositories, queue, and notification bus
// into the six operations an external caller needs. It never opens a
// connection itself; every field is wired in by the process entrypoint
// after the dependencies it names are already open.
type Facade struct {
	Factory  *repo.Factory
	Executor *workflow.Executor
	Queue    queue.Adapter
	Notify   *notify.Bus
	Logger   *zap.Logger
}

// New wires a Facade. It performs no I/O.
func New(factory *repo.Factory, executor *workflow.Executor, q queue.Adapter, bus *notify.Bus, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Facade{Factory: factory, Executor: executor, Queue: q, Notify: bus, Logger: logger}
}

// Submit creates a Task row for userRequest and drives the workflow from
// its first node (intent analysis). clientTaskID, if non-empty, makes the
// call idempotent: a caller retrying the same client-supplied id against
// an already-known Task gets that Task's id back rather than starting a
// second run. The workflow itself runs detached from ctx in its own
// goroutine, since it outlives any single request and may suspend for
// human review.
func (f *Facade) Submit(ctx context.Context, userID, taskType string, clientTaskID string, userRequest []byte) (string, error) {
	taskID := clientTaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	scope, err := f.Factory.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("facade: submit begin: %w", err)
	}
	if existing, getErr := scope.Tasks.Get(ctx, taskID); getErr == nil {
		_ = scope.Rollback()
		return existing.TaskID, nil
	}

	task := domain.Task{
		TaskID:      taskID,
		UserID:      userID,
		TaskType:    taskType,
		UserRequest: userRequest,
		Status:      domain.TaskPending,
		CurrentStep: domain.StepIntent,
	}
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		_ = scope.Rollback()
		return "", fmt.Errorf("facade: submit create task: %w", err)
	}
	if err := scope.Commit(); err != nil {
		return "", fmt.Errorf("facade: submit commit: %w", err)
	}

	initial := domain.RoadmapState{
		TaskID:      taskID,
		UserID:      userID,
		RawRequest:  userRequest,
		CurrentStep: domain.StepIntent,
	}
	go func() {
		runCtx := context.Background()
		if _, err := f.Executor.Run(runCtx, taskID, initial); err != nil {
			f.Logger.Error("facade: workflow run failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}()

	return taskID, nil
}

// GetStatus returns the current Task row projected into a Status.
func (f *Facade) GetStatus(ctx context.Context, taskID string) (Status, error) {
	scope, err := f.Factory.Begin(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("facade: get status begin: %w", err)
	}
	defer scope.Rollback()

	task, err := scope.Tasks.Get(ctx, taskID)
	if err != nil {
		return Status{}, err
	}
	roadmapID := ""
	if task.RoadmapID != nil {
		roadmapID = *task.RoadmapID
	}
	return Status{
		TaskID:      task.TaskID,
		Status:      task.Status,
		CurrentStep: task.CurrentStep,
		RoadmapID:   roadmapID,
		ErrorDetail: string(task.ErrorPayload),
	}, nil
}

// StreamProgress subscribes taskID to the notification bus. Callers read
// from the returned channel until it closes (the bus delivers
// workflow_completed or workflow_suspended as its final event before a
// caller normally unsubscribes) and must call the returned unsubscribe
// func exactly once, e.g. on client disconnect.
func (f *Facade) StreamProgress(taskID string) (<-chan notify.Event, func()) {
	return f.Notify.Subscribe(taskID)
}

// Review resumes a workflow suspended at human_review_pending with an
// externally supplied decision.
func (f *Facade) Review(ctx context.Context, taskID string, decision domain.ReviewDecision, notes string) error {
	_, err := f.Executor.Resume(ctx, taskID, decision, notes)
	return err
}

// RetryFailed creates a fresh Task that re-runs the content fan-out for
// roadmapID, limited to the artifact kinds in kinds (all three if empty),
// and only for concepts whose status for that kind is not already
// completed. It returns the new task's id.
func (f *Facade) RetryFailed(ctx context.Context, userID, roadmapID string, kinds []domain.ArtifactKind) (string, error) {
	return f.requeueContent(ctx, userID, roadmapID, "retry_failed_content", func(c *domain.Concept, kind domain.ArtifactKind) bool {
		return c.StatusFor(kind) != domain.ConceptCompleted
	}, kinds)
}

// RegenerateConcept behaves like RetryFailed but targets a single concept
// regardless of its current status, letting a caller force a redo of
// artifacts that technically succeeded but were unsatisfactory.
func (f *Facade) RegenerateConcept(ctx context.Context, userID, roadmapID, conceptID string, kinds []domain.ArtifactKind) (string, error) {
	return f.requeueContent(ctx, userID, roadmapID, "regenerate_concept", func(c *domain.Concept, _ domain.ArtifactKind) bool { return c.ConceptID == conceptID }, kinds)
}

// requeueContent is the shared implementation behind RetryFailed and
// RegenerateConcept: load the roadmap's framework, reset the selected
// concepts' status for the selected kinds back to pending so the content
// fan-out picks them back up, persist that reset, create a new Task, and
// enqueue a content job against it.
func (f *Facade) requeueContent(ctx context.Context, userID, roadmapID, taskType string, match func(*domain.Concept, domain.ArtifactKind) bool, kinds []domain.ArtifactKind) (string, error) {
	if len(kinds) == 0 {
		kinds = domain.AllArtifactKinds
	}

	scope, err := f.Factory.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("facade: %s begin: %w", taskType, err)
	}
	roadmap, err := scope.Roadmaps.Get(ctx, roadmapID)
	if err != nil {
		_ = scope.Rollback()
		return "", fmt.Errorf("facade: %s load roadmap %s: %w", taskType, roadmapID, err)
	}

	for _, concept := range roadmap.Framework.AllConcepts() {
		for _, kind := range kinds {
			if match(concept, kind) {
				concept.SetStatusFor(kind, domain.ConceptPending)
			}
		}
	}
	if err := scope.Roadmaps.Upsert(ctx, roadmap); err != nil {
		_ = scope.Rollback()
		return "", fmt.Errorf("facade: %s persist reset statuses: %w", taskType, err)
	}

	taskID := uuid.NewString()
	task := domain.Task{
		TaskID:      taskID,
		UserID:      userID,
		TaskType:    taskType,
		Status:      domain.TaskProcessing,
		CurrentStep: domain.StepContentGenerationQueued,
		RoadmapID:   &roadmapID,
	}
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		_ = scope.Rollback()
		return "", fmt.Errorf("facade: %s create task: %w", taskType, err)
	}
	if err := scope.Commit(); err != nil {
		return "", fmt.Errorf("facade: %s commit: %w", taskType, err)
	}

	payload, err := json.Marshal(nodes.ContentJob{TaskID: taskID, RoadmapID: roadmapID})
	if err != nil {
		return "", fmt.Errorf("facade: %s marshal job: %w", taskType, err)
	}
	jobID, err := f.Queue.Enqueue(ctx, queue.Content, payload)
	if err != nil {
		return "", fmt.Errorf("facade: %s enqueue: %w", taskType, err)
	}

	scope2, err := f.Factory.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("facade: %s record job id begin: %w", taskType, err)
	}
	task.CeleryTaskID = jobID
	if err := scope2.Tasks.Upsert(ctx, task); err != nil {
		_ = scope2.Rollback()
		return "", fmt.Errorf("facade: %s record job id: %w", taskType, err)
	}
	if err := scope2.Commit(); err != nil {
		return "", fmt.Errorf("facade: %s record job id commit: %w", taskType, err)
	}

	return taskID, nil
}
