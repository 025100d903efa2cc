package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/learnpath/roadmapgen/internal/domain"
)

func TestTutorialRepo_UpsertLatestClearsPriorLatestFirst(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	// Latest uniqueness: the prior is_latest row for (roadmap, concept) is
	// cleared before the new row lands, inside the same transaction.
	mock.ExpectExec(`UPDATE tutorials SET is_latest = false\s+WHERE roadmap_id = \$1 AND concept_id = \$2 AND is_latest = true`).
		WithArgs("roadmap-1", "concept-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tutorials .*ON CONFLICT \(tutorial_id\) DO UPDATE SET`).
		WithArgs("tut-2", "concept-1", "roadmap-1", 2, "https://store/tut-2", "intro", string(domain.ConceptCompleted)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := scope.Tutorials.UpsertLatest(context.Background(), domain.TutorialMetadata{
		TutorialID:     "tut-2",
		ConceptID:      "concept-1",
		RoadmapID:      "roadmap-1",
		ContentVersion: 2,
		IsLatest:       true,
		ContentURL:     "https://store/tut-2",
		Summary:        "intro",
		ContentStatus:  domain.ConceptCompleted,
	})
	if err != nil {
		t.Fatalf("UpsertLatest: %v", err)
	}
	if err := scope.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTutorialRepo_GetLatest(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	cols := []string{"tutorial_id", "concept_id", "roadmap_id", "content_version", "is_latest", "content_url", "summary", "content_status", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM tutorials WHERE roadmap_id = \$1 AND concept_id = \$2 AND is_latest = true`).
		WithArgs("roadmap-1", "concept-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tut-1", "concept-1", "roadmap-1", 3, true, "https://store/tut-1", "intro", "completed", time.Now(), time.Now()))

	got, err := scope.Tutorials.GetLatest(context.Background(), "roadmap-1", "concept-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.TutorialID != "tut-1" || got.ContentVersion != 3 || !got.IsLatest {
		t.Errorf("GetLatest = %+v, want tut-1 version 3 latest", got)
	}
	if got.ContentStatus != domain.ConceptCompleted {
		t.Errorf("ContentStatus = %q, want completed", got.ContentStatus)
	}
}

func TestTutorialRepo_GetLatestNotFound(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT .* FROM tutorials`).WillReturnError(sql.ErrNoRows)

	_, err := scope.Tutorials.GetLatest(context.Background(), "roadmap-1", "concept-none")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetLatest error = %v, want ErrNotFound", err)
	}
}

func TestResourceRepo_UpsertKeyedByConceptAndRoadmap(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	resources := []domain.Resource{{Title: "Effective Go", URL: "https://go.dev/doc/effective_go", Kind: "doc"}}
	data, _ := json.Marshal(resources)

	mock.ExpectExec(`INSERT INTO resource_recommendations .*ON CONFLICT \(roadmap_id, concept_id\) DO UPDATE SET`).
		WithArgs("rec-1", "concept-1", "roadmap-1", data).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := scope.Resources.Upsert(context.Background(), domain.ResourceRecommendationMetadata{
		ID:        "rec-1",
		ConceptID: "concept-1",
		RoadmapID: "roadmap-1",
		Resources: resources,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResourceRepo_GetRoundTrip(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	resources := []domain.Resource{{Title: "Tour of Go", URL: "https://go.dev/tour", Kind: "course"}}
	data, _ := json.Marshal(resources)
	cols := []string{"id", "concept_id", "roadmap_id", "resources", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM resource_recommendations WHERE roadmap_id = \$1 AND concept_id = \$2`).
		WithArgs("roadmap-1", "concept-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("rec-1", "concept-1", "roadmap-1", data, time.Now(), time.Now()))

	got, err := scope.Resources.Get(context.Background(), "roadmap-1", "concept-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Resources) != 1 || got.Resources[0].Title != "Tour of Go" {
		t.Errorf("Get resources = %+v, want the stored recommendation back", got.Resources)
	}
}

func TestQuizRepo_UpsertAndGet(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	questions := []domain.QuizQuestion{{Prompt: "What does go vet do?", Choices: []string{"formats", "reports suspicious constructs"}, CorrectIndex: 1}}
	data, _ := json.Marshal(questions)

	mock.ExpectExec(`INSERT INTO quizzes .*ON CONFLICT \(roadmap_id, concept_id\) DO UPDATE SET`).
		WithArgs("quiz-1", "concept-1", "roadmap-1", data).
		WillReturnResult(sqlmock.NewResult(0, 1))
	cols := []string{"quiz_id", "concept_id", "roadmap_id", "questions", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM quizzes WHERE roadmap_id = \$1 AND concept_id = \$2`).
		WithArgs("roadmap-1", "concept-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("quiz-1", "concept-1", "roadmap-1", data, time.Now(), time.Now()))

	ctx := context.Background()
	if err := scope.Quizzes.Upsert(ctx, domain.QuizMetadata{QuizID: "quiz-1", ConceptID: "concept-1", RoadmapID: "roadmap-1", Questions: questions}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := scope.Quizzes.Get(ctx, "roadmap-1", "concept-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0].CorrectIndex != 1 {
		t.Errorf("Get questions = %+v, want the stored quiz back", got.Questions)
	}
}

func TestRoadmapRepo_UpsertReplacesFrameworkData(t *testing.T) {
	scope, mock, closeDB := newScopeWithMock(t)
	defer closeDB()

	framework := domain.Framework{
		Stages:              []domain.Stage{{Title: "Basics", Order: 1}},
		TotalEstimatedHours: 12,
	}
	data, _ := json.Marshal(framework)

	mock.ExpectExec(`INSERT INTO roadmaps .*ON CONFLICT \(roadmap_id\) DO UPDATE SET\s+framework_data = EXCLUDED.framework_data`).
		WithArgs("roadmap-1", "task-1", "user-1", data).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := scope.Roadmaps.Upsert(context.Background(), domain.RoadmapMetadata{
		RoadmapID: "roadmap-1",
		TaskID:    "task-1",
		UserID:    "user-1",
		Framework: framework,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
