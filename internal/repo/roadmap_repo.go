package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/learnpath/roadmapgen/internal/domain"
)

type roadmapRepo struct {
	tx *sqlx.Tx
}

type roadmapRow struct {
	RoadmapID     string         `db:"roadmap_id"`
	TaskID        string         `db:"task_id"`
	UserID        string         `db:"user_id"`
	FrameworkData []byte         `db:"framework_data"`
	CreatedAt     sql.NullTime   `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

func (r *roadmapRepo) Upsert(ctx context.Context, roadmap domain.RoadmapMetadata) error {
	data, err := json.Marshal(roadmap.Framework)
	if err != nil {
		return fmt.Errorf("repo: marshal framework for roadmap %s: %w", roadmap.RoadmapID, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO roadmaps (roadmap_id, task_id, user_id, framework_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (roadmap_id) DO UPDATE SET
			framework_data = EXCLUDED.framework_data,
			updated_at = now()
	`, roadmap.RoadmapID, roadmap.TaskID, roadmap.UserID, data)
	if err != nil {
		return fmt.Errorf("repo: upsert roadmap %s: %w", roadmap.RoadmapID, err)
	}
	return nil
}

func (r *roadmapRepo) Get(ctx context.Context, roadmapID string) (domain.RoadmapMetadata, error) {
	var row roadmapRow
	err := r.tx.GetContext(ctx, &row, `SELECT roadmap_id, task_id, user_id, framework_data, created_at, updated_at FROM roadmaps WHERE roadmap_id = $1`, roadmapID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoadmapMetadata{}, ErrNotFound
	}
	if err != nil {
		return domain.RoadmapMetadata{}, fmt.Errorf("repo: get roadmap %s: %w", roadmapID, err)
	}
	var framework domain.Framework
	if err := json.Unmarshal(row.FrameworkData, &framework); err != nil {
		return domain.RoadmapMetadata{}, fmt.Errorf("repo: unmarshal framework for roadmap %s: %w", roadmapID, err)
	}
	return domain.RoadmapMetadata{
		RoadmapID: row.RoadmapID,
		TaskID:    row.TaskID,
		UserID:    row.UserID,
		Framework: framework,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}, nil
}
