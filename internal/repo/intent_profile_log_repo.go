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

type intentRepo struct {
	tx *sqlx.Tx
}

func (r *intentRepo) Upsert(ctx context.Context, intent domain.IntentAnalysisMetadata) error {
	focusAreas, err := json.Marshal(intent.FocusAreas)
	if err != nil {
		return fmt.Errorf("repo: marshal focus areas for task %s: %w", intent.TaskID, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO intent_analyses (task_id, goal, skill_level, focus_areas, target_weeks, raw_document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (task_id) DO UPDATE SET
			goal = EXCLUDED.goal,
			skill_level = EXCLUDED.skill_level,
			focus_areas = EXCLUDED.focus_areas,
			target_weeks = EXCLUDED.target_weeks,
			raw_document = EXCLUDED.raw_document,
			updated_at = now()
	`, intent.TaskID, intent.Goal, intent.SkillLevel, focusAreas, intent.TargetWeeks, intent.RawDocument)
	if err != nil {
		return fmt.Errorf("repo: upsert intent analysis for task %s: %w", intent.TaskID, err)
	}
	return nil
}

func (r *intentRepo) Get(ctx context.Context, taskID string) (domain.IntentAnalysisMetadata, error) {
	var row struct {
		TaskID      string       `db:"task_id"`
		Goal        string       `db:"goal"`
		SkillLevel  string       `db:"skill_level"`
		FocusAreas  []byte       `db:"focus_areas"`
		TargetWeeks int          `db:"target_weeks"`
		RawDocument []byte       `db:"raw_document"`
		CreatedAt   sql.NullTime `db:"created_at"`
		UpdatedAt   sql.NullTime `db:"updated_at"`
	}
	err := r.tx.GetContext(ctx, &row, `
		SELECT task_id, goal, skill_level, focus_areas, target_weeks, raw_document, created_at, updated_at
		FROM intent_analyses WHERE task_id = $1
	`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IntentAnalysisMetadata{}, ErrNotFound
	}
	if err != nil {
		return domain.IntentAnalysisMetadata{}, fmt.Errorf("repo: get intent analysis for task %s: %w", taskID, err)
	}
	var focusAreas []string
	if len(row.FocusAreas) > 0 {
		if err := json.Unmarshal(row.FocusAreas, &focusAreas); err != nil {
			return domain.IntentAnalysisMetadata{}, fmt.Errorf("repo: unmarshal focus areas for task %s: %w", taskID, err)
		}
	}
	return domain.IntentAnalysisMetadata{
		TaskID:      row.TaskID,
		Goal:        row.Goal,
		SkillLevel:  row.SkillLevel,
		FocusAreas:  focusAreas,
		TargetWeeks: row.TargetWeeks,
		RawDocument: row.RawDocument,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}, nil
}

type profileRepo struct {
	tx *sqlx.Tx
}

func (r *profileRepo) Upsert(ctx context.Context, profile domain.UserProfile) error {
	priorKnowledge, err := json.Marshal(profile.PriorKnowledge)
	if err != nil {
		return fmt.Errorf("repo: marshal prior knowledge for user %s: %w", profile.UserID, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, preferred_pace, hours_per_week, prior_knowledge, learning_style, goals, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_pace = EXCLUDED.preferred_pace,
			hours_per_week = EXCLUDED.hours_per_week,
			prior_knowledge = EXCLUDED.prior_knowledge,
			learning_style = EXCLUDED.learning_style,
			goals = EXCLUDED.goals,
			updated_at = now()
	`, profile.UserID, profile.PreferredPace, profile.HoursPerWeek, priorKnowledge, profile.LearningStyle, profile.Goals)
	if err != nil {
		return fmt.Errorf("repo: upsert profile for user %s: %w", profile.UserID, err)
	}
	return nil
}

func (r *profileRepo) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	var row struct {
		UserID         string       `db:"user_id"`
		PreferredPace  string       `db:"preferred_pace"`
		HoursPerWeek   float64      `db:"hours_per_week"`
		PriorKnowledge []byte       `db:"prior_knowledge"`
		LearningStyle  string       `db:"learning_style"`
		Goals          string       `db:"goals"`
		UpdatedAt      sql.NullTime `db:"updated_at"`
	}
	err := r.tx.GetContext(ctx, &row, `
		SELECT user_id, preferred_pace, hours_per_week, prior_knowledge, learning_style, goals, updated_at
		FROM user_profiles WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("repo: get profile for user %s: %w", userID, err)
	}
	var priorKnowledge []string
	if len(row.PriorKnowledge) > 0 {
		if err := json.Unmarshal(row.PriorKnowledge, &priorKnowledge); err != nil {
			return domain.UserProfile{}, fmt.Errorf("repo: unmarshal prior knowledge for user %s: %w", userID, err)
		}
	}
	return domain.UserProfile{
		UserID:         row.UserID,
		PreferredPace:  row.PreferredPace,
		HoursPerWeek:   row.HoursPerWeek,
		PriorKnowledge: priorKnowledge,
		LearningStyle:  row.LearningStyle,
		Goals:          row.Goals,
		UpdatedAt:      row.UpdatedAt.Time,
	}, nil
}

type logRepo struct {
	tx *sqlx.Tx
}

func (r *logRepo) Append(ctx context.Context, entry domain.ExecutionLog) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO execution_logs (trace_id, level, category, payload, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, entry.TraceID, entry.Level, entry.Category, entry.Payload)
	if err != nil {
		return fmt.Errorf("repo: append execution log for trace %s: %w", entry.TraceID, err)
	}
	return nil
}

func (r *logRepo) ListByTrace(ctx context.Context, traceID string) ([]domain.ExecutionLog, error) {
	var rows []struct {
		TraceID   string       `db:"trace_id"`
		Level     string       `db:"level"`
		Category  string       `db:"category"`
		Payload   []byte       `db:"payload"`
		CreatedAt sql.NullTime `db:"created_at"`
	}
	if err := r.tx.SelectContext(ctx, &rows, `
		SELECT trace_id, level, category, payload, created_at
		FROM execution_logs WHERE trace_id = $1 ORDER BY created_at ASC
	`, traceID); err != nil {
		return nil, fmt.Errorf("repo: list execution logs for trace %s: %w", traceID, err)
	}
	out := make([]domain.ExecutionLog, len(rows))
	for i, row := range rows {
		out[i] = domain.ExecutionLog{
			TraceID:   row.TraceID,
			Level:     row.Level,
			Category:  row.Category,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt.Time,
		}
	}
	return out, nil
}
