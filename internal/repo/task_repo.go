package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/learnpath/roadmapgen/internal/domain"
)

type taskRepo struct {
	tx *sqlx.Tx
}

// Terminal monotonicity: the ON CONFLICT branch only
// fires when the existing row is not already in a terminal status, so a
// late or duplicate write can never resurrect a completed/failed/rejected
// task back into a live one.
const taskUpsertQuery = `
INSERT INTO tasks (task_id, user_id, task_type, user_request, status, current_step, roadmap_id, celery_task_id, error_payload, created_at, updated_at)
VALUES (:task_id, :user_id, :task_type, :user_request, :status, :current_step, :roadmap_id, :celery_task_id, :error_payload, now(), now())
ON CONFLICT (task_id) DO UPDATE SET
	status = EXCLUDED.status,
	current_step = EXCLUDED.current_step,
	roadmap_id = EXCLUDED.roadmap_id,
	celery_task_id = EXCLUDED.celery_task_id,
	error_payload = EXCLUDED.error_payload,
	updated_at = now()
WHERE tasks.status NOT IN ('completed', 'partial_failure', 'failed', 'rejected')
`

func (r *taskRepo) Upsert(ctx context.Context, task domain.Task) error {
	row := taskRow{
		TaskID:       task.TaskID,
		UserID:       task.UserID,
		TaskType:     task.TaskType,
		UserRequest:  task.UserRequest,
		Status:       string(task.Status),
		CurrentStep:  string(task.CurrentStep),
		RoadmapID:    task.RoadmapID,
		CeleryTaskID: task.CeleryTaskID,
		ErrorPayload: task.ErrorPayload,
	}
	if _, err := r.tx.NamedExecContext(ctx, taskUpsertQuery, row); err != nil {
		return fmt.Errorf("repo: upsert task %s: %w", task.TaskID, err)
	}
	return nil
}

func (r *taskRepo) Get(ctx context.Context, taskID string) (domain.Task, error) {
	var row taskRow
	err := r.tx.GetContext(ctx, &row, `SELECT task_id, user_id, task_type, user_request, status, current_step, roadmap_id, celery_task_id, error_payload, created_at, updated_at FROM tasks WHERE task_id = $1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("repo: get task %s: %w", taskID, err)
	}
	return row.toDomain(), nil
}

func (r *taskRepo) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, step domain.WorkflowStep) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE tasks SET status = $1, current_step = $2, updated_at = now()
		WHERE task_id = $3 AND status NOT IN ('completed', 'partial_failure', 'failed', 'rejected')
	`, string(status), string(step), taskID)
	if err != nil {
		return fmt.Errorf("repo: update task status %s: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repo: update task status %s: %w", taskID, err)
	}
	if n == 0 {
		// Either the task doesn't exist, or it is already terminal and the
		// write is correctly suppressed; callers distinguish via Get.
		if _, getErr := r.Get(ctx, taskID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *taskRepo) ListStuck(ctx context.Context, olderThan time.Time) ([]domain.Task, error) {
	var rows []taskRow
	err := r.tx.SelectContext(ctx, &rows, `
		SELECT task_id, user_id, task_type, user_request, status, current_step, roadmap_id, celery_task_id, error_payload, created_at, updated_at
		FROM tasks
		WHERE status NOT IN ('completed', 'partial_failure', 'failed', 'rejected') AND updated_at < $1
		ORDER BY updated_at ASC
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("repo: list stuck tasks: %w", err)
	}
	out := make([]domain.Task, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// taskRow is the sqlx scan/bind target for the tasks table; it keeps
// domain.Task free of db struct tags.
type taskRow struct {
	TaskID       string       `db:"task_id"`
	UserID       string       `db:"user_id"`
	TaskType     string       `db:"task_type"`
	UserRequest  []byte       `db:"user_request"`
	Status       string       `db:"status"`
	CurrentStep  string       `db:"current_step"`
	RoadmapID    *string      `db:"roadmap_id"`
	CeleryTaskID string       `db:"celery_task_id"`
	ErrorPayload []byte       `db:"error_payload"`
	CreatedAt    sql.NullTime `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
}

func (r taskRow) toDomain() domain.Task {
	return domain.Task{
		TaskID:       r.TaskID,
		UserID:       r.UserID,
		TaskType:     r.TaskType,
		UserRequest:  r.UserRequest,
		Status:       domain.TaskStatus(r.Status),
		CurrentStep:  domain.WorkflowStep(r.CurrentStep),
		RoadmapID:    r.RoadmapID,
		CeleryTaskID: r.CeleryTaskID,
		ErrorPayload: r.ErrorPayload,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}
