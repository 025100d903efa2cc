package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/learnpath/roadmapgen/internal/domain"
)

var taskCols = []string{"task_id", "user_id", "task_type", "user_request", "status", "current_step", "roadmap_id", "celery_task_id", "error_payload", "created_at", "updated_at"}

func taskRowValues(taskID string, status domain.TaskStatus) []driver.Value {
	return []driver.Value{taskID, "user-1", "generate_roadmap", []byte(`{}`), string(status), string(domain.StepIntent), nil, "", nil, time.Now(), time.Now()}
}

func TestTaskRepo_UpsertGuardsTerminalStatuses(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	// The upsert's ON CONFLICT branch must carry the terminal-status guard
	// so a duplicate write can never resurrect a finished task.
	mock.ExpectExec(`INSERT INTO tasks .*ON CONFLICT \(task_id\) DO UPDATE SET.*WHERE tasks.status NOT IN \('completed', 'partial_failure', 'failed', 'rejected'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := scope.Tasks.Upsert(context.Background(), domain.Task{
		TaskID:      "task-1",
		UserID:      "user-1",
		TaskType:    "generate_roadmap",
		UserRequest: []byte(`{"goal":"learn go"}`),
		Status:      domain.TaskProcessing,
		CurrentStep: domain.StepIntent,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := scope.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTaskRepo_UpsertTwiceIssuesSameStatement(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	task := domain.Task{TaskID: "task-1", UserID: "user-1", Status: domain.TaskPending, CurrentStep: domain.StepIntent}

	// Applying the same upsert twice must not take a different code path
	// the second time: same single statement, conflict resolved in SQL.
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := scope.Tasks.Upsert(ctx, task); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTaskRepo_GetNotFound(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE task_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := scope.Tasks.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTaskRepo_UpdateStatusSuppressedOnTerminalTask(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	// Zero rows affected on a task that exists and is terminal: the update
	// is correctly suppressed and must not surface as an error.
	mock.ExpectExec(`UPDATE tasks SET status = \$1`).
		WithArgs(string(domain.TaskProcessing), string(domain.StepContentGeneration), "task-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE task_id = \$1`).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(taskRowValues("task-1", domain.TaskCompleted)...))

	err := scope.Tasks.UpdateStatus(context.Background(), "task-1", domain.TaskProcessing, domain.StepContentGeneration)
	if err != nil {
		t.Fatalf("UpdateStatus on terminal task: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTaskRepo_UpdateStatusMissingTask(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	mock.ExpectExec(`UPDATE tasks SET status = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE task_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := scope.Tasks.UpdateStatus(context.Background(), "missing", domain.TaskProcessing, domain.StepIntent)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTaskRepo_ListStuckFiltersTerminal(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT .* FROM tasks\s+WHERE status NOT IN \('completed', 'partial_failure', 'failed', 'rejected'\) AND updated_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(taskRowValues("stuck-1", domain.TaskProcessing)...).
			AddRow(taskRowValues("stuck-2", domain.TaskHumanReviewPending)...))

	tasks, err := scope.Tasks.ListStuck(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListStuck: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ListStuck returned %d tasks, want 2", len(tasks))
	}
	if tasks[0].TaskID != "stuck-1" || tasks[1].TaskID != "stuck-2" {
		t.Errorf("ListStuck order = %s, %s; want stuck-1, stuck-2", tasks[0].TaskID, tasks[1].TaskID)
	}
}
