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

// tutorialRepo implements TutorialRepo. Invariant: inserting a new
// version clears IsLatest on the prior row for the same
// (RoadmapID, ConceptID) pair, all inside the caller's transaction.
type tutorialRepo struct {
	tx *sqlx.Tx
}

func (r *tutorialRepo) UpsertLatest(ctx context.Context, t domain.TutorialMetadata) error {
	if _, err := r.tx.ExecContext(ctx, `
		UPDATE tutorials SET is_latest = false
		WHERE roadmap_id = $1 AND concept_id = $2 AND is_latest = true
	`, t.RoadmapID, t.ConceptID); err != nil {
		return fmt.Errorf("repo: clear prior latest tutorial for concept %s: %w", t.ConceptID, err)
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO tutorials (tutorial_id, concept_id, roadmap_id, content_version, is_latest, content_url, summary, content_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $6, $7, now(), now())
		ON CONFLICT (tutorial_id) DO UPDATE SET
			content_version = EXCLUDED.content_version,
			is_latest = true,
			content_url = EXCLUDED.content_url,
			summary = EXCLUDED.summary,
			content_status = EXCLUDED.content_status,
			updated_at = now()
	`, t.TutorialID, t.ConceptID, t.RoadmapID, t.ContentVersion, t.ContentURL, t.Summary, string(t.ContentStatus))
	if err != nil {
		return fmt.Errorf("repo: upsert tutorial %s: %w", t.TutorialID, err)
	}
	return nil
}

func (r *tutorialRepo) GetLatest(ctx context.Context, roadmapID, conceptID string) (domain.TutorialMetadata, error) {
	var row struct {
		TutorialID     string       `db:"tutorial_id"`
		ConceptID      string       `db:"concept_id"`
		RoadmapID      string       `db:"roadmap_id"`
		ContentVersion int          `db:"content_version"`
		IsLatest       bool         `db:"is_latest"`
		ContentURL     string       `db:"content_url"`
		Summary        string       `db:"summary"`
		ContentStatus  string       `db:"content_status"`
		CreatedAt      sql.NullTime `db:"created_at"`
		UpdatedAt      sql.NullTime `db:"updated_at"`
	}
	err := r.tx.GetContext(ctx, &row, `
		SELECT tutorial_id, concept_id, roadmap_id, content_version, is_latest, content_url, summary, content_status, created_at, updated_at
		FROM tutorials WHERE roadmap_id = $1 AND concept_id = $2 AND is_latest = true
	`, roadmapID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TutorialMetadata{}, ErrNotFound
	}
	if err != nil {
		return domain.TutorialMetadata{}, fmt.Errorf("repo: get latest tutorial for concept %s: %w", conceptID, err)
	}
	return domain.TutorialMetadata{
		TutorialID:     row.TutorialID,
		ConceptID:      row.ConceptID,
		RoadmapID:      row.RoadmapID,
		ContentVersion: row.ContentVersion,
		IsLatest:       row.IsLatest,
		ContentURL:     row.ContentURL,
		Summary:        row.Summary,
		ContentStatus:  domain.ConceptStatus(row.ContentStatus),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}, nil
}

// resourceRepo implements ResourceRepo, keyed uniquely by (roadmap_id, concept_id).
type resourceRepo struct {
	tx *sqlx.Tx
}

func (r *resourceRepo) Upsert(ctx context.Context, rec domain.ResourceRecommendationMetadata) error {
	data, err := json.Marshal(rec.Resources)
	if err != nil {
		return fmt.Errorf("repo: marshal resources for concept %s: %w", rec.ConceptID, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO resource_recommendations (id, concept_id, roadmap_id, resources, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (roadmap_id, concept_id) DO UPDATE SET
			resources = EXCLUDED.resources,
			updated_at = now()
	`, rec.ID, rec.ConceptID, rec.RoadmapID, data)
	if err != nil {
		return fmt.Errorf("repo: upsert resources for concept %s: %w", rec.ConceptID, err)
	}
	return nil
}

func (r *resourceRepo) Get(ctx context.Context, roadmapID, conceptID string) (domain.ResourceRecommendationMetadata, error) {
	var row struct {
		ID        string       `db:"id"`
		ConceptID string       `db:"concept_id"`
		RoadmapID string       `db:"roadmap_id"`
		Resources []byte       `db:"resources"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}
	err := r.tx.GetContext(ctx, &row, `
		SELECT id, concept_id, roadmap_id, resources, created_at, updated_at
		FROM resource_recommendations WHERE roadmap_id = $1 AND concept_id = $2
	`, roadmapID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResourceRecommendationMetadata{}, ErrNotFound
	}
	if err != nil {
		return domain.ResourceRecommendationMetadata{}, fmt.Errorf("repo: get resources for concept %s: %w", conceptID, err)
	}
	var resources []domain.Resource
	if err := json.Unmarshal(row.Resources, &resources); err != nil {
		return domain.ResourceRecommendationMetadata{}, fmt.Errorf("repo: unmarshal resources for concept %s: %w", conceptID, err)
	}
	return domain.ResourceRecommendationMetadata{
		ID:        row.ID,
		ConceptID: row.ConceptID,
		RoadmapID: row.RoadmapID,
		Resources: resources,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}, nil
}

// quizRepo implements QuizRepo, keyed uniquely by (roadmap_id, concept_id).
type quizRepo struct {
	tx *sqlx.Tx
}

func (r *quizRepo) Upsert(ctx context.Context, quiz domain.QuizMetadata) error {
	data, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("repo: marshal quiz questions for concept %s: %w", quiz.ConceptID, err)
	}
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO quizzes (quiz_id, concept_id, roadmap_id, questions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (roadmap_id, concept_id) DO UPDATE SET
			questions = EXCLUDED.questions,
			updated_at = now()
	`, quiz.QuizID, quiz.ConceptID, quiz.RoadmapID, data)
	if err != nil {
		return fmt.Errorf("repo: upsert quiz for concept %s: %w", quiz.ConceptID, err)
	}
	return nil
}

func (r *quizRepo) Get(ctx context.Context, roadmapID, conceptID string) (domain.QuizMetadata, error) {
	var row struct {
		QuizID    string       `db:"quiz_id"`
		ConceptID string       `db:"concept_id"`
		RoadmapID string       `db:"roadmap_id"`
		Questions []byte       `db:"questions"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}
	err := r.tx.GetContext(ctx, &row, `
		SELECT quiz_id, concept_id, roadmap_id, questions, created_at, updated_at
		FROM quizzes WHERE roadmap_id = $1 AND concept_id = $2
	`, roadmapID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizMetadata{}, ErrNotFound
	}
	if err != nil {
		return domain.QuizMetadata{}, fmt.Errorf("repo: get quiz for concept %s: %w", conceptID, err)
	}
	var questions []domain.QuizQuestion
	if err := json.Unmarshal(row.Questions, &questions); err != nil {
		return domain.QuizMetadata{}, fmt.Errorf("repo: unmarshal quiz questions for concept %s: %w", conceptID, err)
	}
	return domain.QuizMetadata{
		QuizID:    row.QuizID,
		ConceptID: row.ConceptID,
		RoadmapID: row.RoadmapID,
		Questions: questions,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}, nil
}
