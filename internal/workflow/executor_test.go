package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/learnpath/roadmapgen/graph"
	"github.com/learnpath/roadmapgen/graph/store"
	"github.com/learnpath/roadmapgen/internal/checkpoint"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/statemgr"
	"github.com/learnpath/roadmapgen/internal/workflow"
)

var taskCols = []string{"task_id", "user_id", "task_type", "user_request", "status", "current_step", "roadmap_id", "celery_task_id", "error_payload", "created_at", "updated_at"}

func newMockFactory(t *testing.T) (*repo.Factory, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	db := sqlx.NewDb(mockDB, "sqlmock")
	return repo.NewFactory(db, nil), mock, func() { _ = db.Close() }
}

// fakeNode is a minimal graph.Node[domain.RoadmapState] that applies a
// delta function and optionally fails, for exercising the executor's
// drive loop without a live agent or repository dependency.
type fakeNode struct {
	name  string
	apply func(domain.RoadmapState) domain.RoadmapState
	err   error
	calls int
}

func (n *fakeNode) Run(_ context.Context, state domain.RoadmapState) graph.NodeResult[domain.RoadmapState] {
	n.calls++
	if n.err != nil {
		return graph.NodeResult[domain.RoadmapState]{Err: n.err}
	}
	return graph.NodeResult[domain.RoadmapState]{Delta: n.apply(state)}
}

func newTestExecutor(factory *repo.Factory, nodes workflow.Nodes) *workflow.Executor {
	cp := checkpoint.New(store.NewMemStore[domain.RoadmapState]())
	return &workflow.Executor{
		Nodes:      nodes,
		RouterCfg:  workflow.DefaultRouterConfig(),
		Checkpoint: cp,
		State:      statemgr.New(),
		Factory:    factory,
	}
}

func TestExecutor_Run_CompletesWhenContentSkipped(t *testing.T) {
	ctx := context.Background()
	factory, mock, closeDB := newMockFactory(t)
	defer closeDB()

	intent := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, RoadmapID: "rm-1", Intent: &domain.IntentAnalysisMetadata{TaskID: s.TaskID, Goal: "learn go"}}
	}}
	curriculum := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, Framework: &domain.Framework{}, FrameworkVersion: s.FrameworkVersion + 1}
	}}
	validation := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, ValidatedVersion: s.FrameworkVersion, ValidationPassed: true, ValidationScore: 1.0}
	}}

	exec := newTestExecutor(factory, workflow.Nodes{Intent: intent, Curriculum: curriculum, Validation: validation})
	exec.RouterCfg.SkipHumanReview = true
	exec.RouterCfg.SkipContentGeneration = true

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	initial := domain.RoadmapState{TaskID: "t-1", UserID: "u-1", RawRequest: []byte(`{"goal":"learn go"}`)}
	final, err := exec.Run(ctx, "t-1", initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !final.Done || final.FinalStatus != domain.TaskCompleted {
		t.Fatalf("expected a completed terminal state, got %+v", final)
	}
	for _, n := range []*fakeNode{intent, curriculum, validation} {
		if n.calls != 1 {
			t.Fatalf("node %s: expected 1 call, got %d", n.name, n.calls)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

// The content node never completes in-process: it enqueues the fan-out
// job and suspends. Terminal status for content-bearing runs is resolved
// by the content worker, not the executor, so the drive loop must stop
// here without touching the task row.
func TestExecutor_Run_SuspendsAfterContentEnqueue(t *testing.T) {
	ctx := context.Background()
	factory, mock, closeDB := newMockFactory(t)
	defer closeDB()

	intent := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, RoadmapID: "rm-1", Intent: &domain.IntentAnalysisMetadata{TaskID: s.TaskID}}
	}}
	curriculum := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, Framework: &domain.Framework{}, FrameworkVersion: s.FrameworkVersion + 1}
	}}
	validation := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, ValidatedVersion: s.FrameworkVersion, ValidationPassed: true, ValidationScore: 1.0}
	}}
	content := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, CurrentStep: domain.StepContentGenerationQueued, Suspended: true}
	}}

	exec := newTestExecutor(factory, workflow.Nodes{Intent: intent, Curriculum: curriculum, Validation: validation, Content: content})
	exec.RouterCfg.SkipHumanReview = true

	final, err := exec.Run(ctx, "t-6", domain.RoadmapState{TaskID: "t-6", UserID: "u-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Done {
		t.Fatalf("run with queued content should not be Done, got %+v", final)
	}
	if !final.Suspended || final.CurrentStep != domain.StepContentGenerationQueued {
		t.Fatalf("expected suspension at content_generation_queued, got %+v", final)
	}
	if content.calls != 1 {
		t.Fatalf("expected content node to run once, got %d", content.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("executor wrote to the task row during suspension: %v", err)
	}
}

func TestExecutor_Run_SuspendsAtHumanReview(t *testing.T) {
	ctx := context.Background()
	factory, _, closeDB := newMockFactory(t)
	defer closeDB()

	intent := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, RoadmapID: "rm-1", Intent: &domain.IntentAnalysisMetadata{TaskID: s.TaskID}}
	}}
	curriculum := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, Framework: &domain.Framework{}, FrameworkVersion: s.FrameworkVersion + 1}
	}}
	validation := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, ValidatedVersion: s.FrameworkVersion, ValidationPassed: true, ValidationScore: 1.0}
	}}
	review := &fakeNode{apply: func(s domain.RoadmapState) domain.RoadmapState {
		return domain.RoadmapState{TaskID: s.TaskID, CurrentStep: domain.StepHumanReview, Suspended: true}
	}}

	exec := newTestExecutor(factory, workflow.Nodes{Intent: intent, Curriculum: curriculum, Validation: validation, Review: review})

	initial := domain.RoadmapState{TaskID: "t-2", UserID: "u-1"}
	final, err := exec.Run(ctx, "t-2", initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Done {
		t.Fatalf("suspended workflow should not be Done, got %+v", final)
	}
	if !final.Suspended || final.CurrentStep != domain.StepHumanReview {
		t.Fatalf("expected a suspended state at human_review, got %+v", final)
	}
	if review.calls != 1 {
		t.Fatalf("expected review node to run once, got %d", review.calls)
	}
	if content := exec.Nodes.Content; content != nil {
		t.Fatal("content node should not be registered/called for this test")
	}
}

func TestExecutor_Run_NodeFailureMarksTaskFailed(t *testing.T) {
	ctx := context.Background()
	factory, mock, closeDB := newMockFactory(t)
	defer closeDB()

	intent := &fakeNode{err: &workflow.FatalError{Cause: errors.New("boom")}}
	exec := newTestExecutor(factory, workflow.Nodes{Intent: intent})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT task_id, user_id, task_type.*FROM tasks WHERE task_id = \$1`).
		WithArgs("t-3").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-3", "u-1", "generate_roadmap", []byte(nil), "pending", "", (*string)(nil), "", []byte(nil), time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	final, err := exec.Run(ctx, "t-3", domain.RoadmapState{TaskID: "t-3"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !final.Done || final.FinalStatus != domain.TaskFailed {
		t.Fatalf("expected task failed, got %+v", final)
	}
	if final.ErrorKind != string(workflow.KindFatal) {
		t.Fatalf("expected fatal error kind recorded, got %q", final.ErrorKind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestExecutor_Run_MissingNodeReturnsError(t *testing.T) {
	ctx := context.Background()
	factory, _, closeDB := newMockFactory(t)
	defer closeDB()

	exec := newTestExecutor(factory, workflow.Nodes{})
	_, err := exec.Run(ctx, "t-4", domain.RoadmapState{TaskID: "t-4"})
	if err == nil {
		t.Fatal("expected an error for an unregistered node")
	}
}

func TestExecutor_Resume_TerminalTaskIsNoOp(t *testing.T) {
	ctx := context.Background()
	factory, mock, closeDB := newMockFactory(t)
	defer closeDB()

	exec := newTestExecutor(factory, workflow.Nodes{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT task_id, user_id, task_type.*FROM tasks WHERE task_id = \$1`).
		WithArgs("t-5").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-5", "u-1", "generate_roadmap", []byte(nil), "completed", "done", (*string)(nil), "", []byte(nil), time.Now(), time.Now()))
	mock.ExpectRollback()

	final, err := exec.Resume(ctx, "t-5", domain.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !final.Done || final.FinalStatus != domain.TaskCompleted {
		t.Fatalf("expected the terminal state echoed back, got %+v", final)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}
