// Package repo implements the business-data persistence layer:
// one sqlx-backed repository per domain.Task / concord entity tree, plus
// a Factory that hands out a transaction-scoped Scope so callers control
// commit/rollback boundaries rather than repositories committing for
// themselves.
package repo

import (
	"context"
	"time"

	"github.com/learnpath/roadmapgen/internal/domain"
)

// TaskRepo persists domain.Task rows.
type TaskRepo interface {
	Upsert(ctx context.Context, task domain.Task) error
	Get(ctx context.Context, taskID string) (domain.Task, error)
	UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, step domain.WorkflowStep) error
	// ListStuck returns every non-terminal Task last updated before
	// olderThan, the recovery sweeper's candidate set.
	ListStuck(ctx context.Context, olderThan time.Time) ([]domain.Task, error)
}

// RoadmapRepo persists the structural half of the dual-store model
// (domain.RoadmapMetadata, including its embedded Framework tree).
type RoadmapRepo interface {
	Upsert(ctx context.Context, roadmap domain.RoadmapMetadata) error
	Get(ctx context.Context, roadmapID string) (domain.RoadmapMetadata, error)
}

// TutorialRepo persists domain.TutorialMetadata rows. Inserting a new
// version must atomically clear IsLatest on the prior row for the same
// (RoadmapID, ConceptID) pair — see tutorialRepo.UpsertLatest.
type TutorialRepo interface {
	UpsertLatest(ctx context.Context, tutorial domain.TutorialMetadata) error
	GetLatest(ctx context.Context, roadmapID, conceptID string) (domain.TutorialMetadata, error)
}

// ResourceRepo persists domain.ResourceRecommendationMetadata rows.
type ResourceRepo interface {
	Upsert(ctx context.Context, rec domain.ResourceRecommendationMetadata) error
	Get(ctx context.Context, roadmapID, conceptID string) (domain.ResourceRecommendationMetadata, error)
}

// QuizRepo persists domain.QuizMetadata rows.
type QuizRepo interface {
	Upsert(ctx context.Context, quiz domain.QuizMetadata) error
	Get(ctx context.Context, roadmapID, conceptID string) (domain.QuizMetadata, error)
}

// IntentRepo persists domain.IntentAnalysisMetadata rows, one per task.
type IntentRepo interface {
	Upsert(ctx context.Context, intent domain.IntentAnalysisMetadata) error
	Get(ctx context.Context, taskID string) (domain.IntentAnalysisMetadata, error)
}

// ProfileRepo persists domain.UserProfile rows.
type ProfileRepo interface {
	Upsert(ctx context.Context, profile domain.UserProfile) error
	Get(ctx context.Context, userID string) (domain.UserProfile, error)
}

// LogRepo appends domain.ExecutionLog rows. Append-only: no Update method.
type LogRepo interface {
	Append(ctx context.Context, entry domain.ExecutionLog) error
	ListByTrace(ctx context.Context, traceID string) ([]domain.ExecutionLog, error)
}

// ErrNotFound is returned by Get methods when no matching row exists.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "repo: not found" }
