package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the business-data tables if they don't already
// exist, a self-migration
// pattern but for the Postgres business pool rather than the checkpoint
// pool.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_type TEXT NOT NULL,
		user_request BYTEA,
		status TEXT NOT NULL,
		current_step TEXT NOT NULL,
		roadmap_id TEXT,
		celery_task_id TEXT,
		error_payload BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_roadmap_status ON tasks(roadmap_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status_updated ON tasks(status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS roadmaps (
		roadmap_id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		framework_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tutorials (
		tutorial_id TEXT PRIMARY KEY,
		concept_id TEXT NOT NULL,
		roadmap_id TEXT NOT NULL,
		content_version INT NOT NULL,
		is_latest BOOLEAN NOT NULL DEFAULT true,
		content_url TEXT,
		summary TEXT,
		content_status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tutorials_latest ON tutorials(roadmap_id, concept_id, is_latest)`,
	`CREATE TABLE IF NOT EXISTS resource_recommendations (
		id TEXT PRIMARY KEY,
		concept_id TEXT NOT NULL,
		roadmap_id TEXT NOT NULL,
		resources JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(roadmap_id, concept_id)
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		quiz_id TEXT PRIMARY KEY,
		concept_id TEXT NOT NULL,
		roadmap_id TEXT NOT NULL,
		questions JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(roadmap_id, concept_id)
	)`,
	`CREATE TABLE IF NOT EXISTS intent_analyses (
		task_id TEXT PRIMARY KEY,
		goal TEXT,
		skill_level TEXT,
		focus_areas JSONB,
		target_weeks INT,
		raw_document BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		preferred_pace TEXT,
		hours_per_week DOUBLE PRECISION,
		prior_knowledge JSONB,
		learning_style TEXT,
		goals TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS execution_logs (
		id BIGSERIAL PRIMARY KEY,
		trace_id TEXT NOT NULL,
		level TEXT NOT NULL,
		category TEXT NOT NULL,
		payload BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_execution_logs_trace ON execution_logs(trace_id)`,
}

// Migrate creates the business-data schema if it doesn't already exist.
// Called once at startup after OpenPostgresPool, never from inside a
// constructor.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repo: migrate: %w", err)
		}
	}
	return nil
}
