// Package content implements the content generation fan-out: the
// worker-side phase that turns a Framework's up-to-O(100) concepts into
// tutorial, resources, and quiz artifacts, three per concept, bounded by
// a per-artifact-kind semaphore.
package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
)

// Config caps concurrent in-flight generations per artifact kind.
// Content fan-out only ever needs K independent semaphore-bounded
// pools (one per artifact kind) run with plain goroutines, so it's
// built directly on golang.org/x/sync/semaphore.Weighted.
type Config struct {
	Semaphore map[domain.ArtifactKind]int64
}

// DefaultConfig caps each of the three kinds at 10 concurrent generations.
func DefaultConfig() Config {
	return Config{Semaphore: map[domain.ArtifactKind]int64{
		domain.ArtifactTutorial:  10,
		domain.ArtifactResources: 10,
		domain.ArtifactQuiz:      10,
	}}
}

// Runner executes the fan-out for one roadmap's framework.
type Runner struct {
	Agents  *agent.Set
	Factory *repo.Factory
	Config  Config

	// fwMu guards the roadmap's Framework tree: the three kinds run
	// concurrently and both read it (pending filter) and write it
	// (status/ref projection, marshal on upsert).
	fwMu sync.Mutex
}

// Run generates every (concept, kind) artifact that isn't already
// ConceptCompleted. The three kinds run in parallel; within a kind,
// concepts keep framework traversal order. Each kind commits one
// transaction holding both its detail rows and the framework_data
// projection of those rows, so a crash between kinds never leaves a
// committed detail row invisible in the structural tree. It returns one
// domain.ContentResult per (concept, kind) pair it attempted.
func (r *Runner) Run(ctx context.Context, roadmap *domain.RoadmapMetadata, profile domain.UserProfile) ([]domain.ContentResult, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		all      []domain.ContentResult
		firstErr error
	)
	for _, kind := range domain.AllArtifactKinds {
		wg.Add(1)
		go func(kind domain.ArtifactKind) {
			defer wg.Done()
			results, err := r.runKind(ctx, kind, roadmap, profile)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, results...)
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(kind)
	}
	wg.Wait()
	return all, firstErr
}

// runKind drives one artifact kind: generate every pending concept's
// artifact under the kind's semaphore, write the detail rows, then fold
// the outcomes into framework_data and commit everything as one
// transaction. Concurrent kinds serialize briefly on the roadmap row at
// commit time; the LLM calls themselves still overlap across kinds.
func (r *Runner) runKind(ctx context.Context, kind domain.ArtifactKind, roadmap *domain.RoadmapMetadata, profile domain.UserProfile) ([]domain.ContentResult, error) {
	type item struct {
		conceptID string
		input     agent.ConceptContentInput
	}

	r.fwMu.Lock()
	concepts := roadmap.Framework.AllConcepts()
	pending := make([]item, 0, len(concepts))
	for _, c := range concepts {
		if c.StatusFor(kind) != domain.ConceptCompleted {
			pending = append(pending, item{conceptID: c.ConceptID, input: agent.ConceptContentInput{Concept: *c, Profile: profile}})
		}
	}
	r.fwMu.Unlock()
	if len(pending) == 0 {
		return nil, nil
	}

	cap := r.Config.Semaphore[kind]
	if cap <= 0 {
		cap = 10
	}
	sem := semaphore.NewWeighted(cap)

	scope, err := r.Factory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("content: begin transaction for %s: %w", kind, err)
	}

	results := make([]domain.ContentResult, len(pending))
	var wg sync.WaitGroup
	var txMu sync.Mutex // serializes repo calls on the kind's shared *sqlx.Tx

	for i, it := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			_ = scope.Rollback()
			return nil, fmt.Errorf("content: acquire semaphore for %s: %w", kind, err)
		}
		wg.Add(1)
		go func(i int, it item) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.generateOne(ctx, scope, &txMu, roadmap.RoadmapID, kind, it.conceptID, it.input)
		}(i, it)
	}
	wg.Wait()

	// Project the outcomes onto the structural tree and persist it in the
	// same transaction as the detail rows, so either both land or neither
	// does. Detail rows stay the source of truth; this keeps the
	// projection from trailing them across a crash.
	r.fwMu.Lock()
	byID := make(map[string]*domain.Concept, len(concepts))
	for _, c := range concepts {
		byID[c.ConceptID] = c
	}
	for _, res := range results {
		c := byID[res.ConceptID]
		if c == nil {
			continue
		}
		c.SetStatusFor(kind, res.Status)
		if res.Status == domain.ConceptCompleted {
			c.SetRefFor(kind, res.ArtifactID)
		}
	}
	err = scope.Roadmaps.Upsert(ctx, *roadmap)
	r.fwMu.Unlock()
	if err != nil {
		_ = scope.Rollback()
		return results, fmt.Errorf("content: persist %s framework projection: %w", kind, err)
	}

	if err := scope.Commit(); err != nil {
		return results, fmt.Errorf("content: commit %s batch: %w", kind, err)
	}
	return results, nil
}

// generateOne calls the matching agent variant and persists its output.
// It never returns an error: a failed generation is recorded as a failed
// domain.ContentResult so one concept's failure doesn't abort the batch.
func (r *Runner) generateOne(ctx context.Context, scope *repo.Scope, txMu *sync.Mutex, roadmapID string, kind domain.ArtifactKind, conceptID string, input agent.ConceptContentInput) domain.ContentResult {
	var artifactID string
	var err error
	switch kind {
	case domain.ArtifactTutorial:
		artifactID, err = r.generateTutorial(ctx, scope, txMu, roadmapID, conceptID, input)
	case domain.ArtifactResources:
		artifactID, err = r.generateResources(ctx, scope, txMu, roadmapID, conceptID, input)
	case domain.ArtifactQuiz:
		artifactID, err = r.generateQuiz(ctx, scope, txMu, roadmapID, conceptID, input)
	default:
		err = fmt.Errorf("content: unknown artifact kind %q", kind)
	}

	if err != nil {
		return domain.ContentResult{ConceptID: conceptID, Kind: kind, Status: domain.ConceptFailed, Err: err.Error()}
	}
	return domain.ContentResult{ConceptID: conceptID, Kind: kind, Status: domain.ConceptCompleted, ArtifactID: artifactID}
}

func (r *Runner) generateTutorial(ctx context.Context, scope *repo.Scope, txMu *sync.Mutex, roadmapID, conceptID string, input agent.ConceptContentInput) (string, error) {
	out, err := r.Agents.TutorialGenerator.Execute(ctx, input)
	if err != nil {
		return "", err
	}

	txMu.Lock()
	defer txMu.Unlock()

	id := uuid.NewString()
	version := 1
	if existing, getErr := scope.Tutorials.GetLatest(ctx, roadmapID, conceptID); getErr == nil {
		id = existing.TutorialID
		version = existing.ContentVersion + 1
	}

	tutorial := domain.TutorialMetadata{
		TutorialID:     id,
		ConceptID:      conceptID,
		RoadmapID:      roadmapID,
		ContentVersion: version,
		IsLatest:       true,
		ContentURL:     out.ContentURL,
		Summary:        out.Summary,
		ContentStatus:  domain.ConceptCompleted,
	}
	if err := scope.Tutorials.UpsertLatest(ctx, tutorial); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Runner) generateResources(ctx context.Context, scope *repo.Scope, txMu *sync.Mutex, roadmapID, conceptID string, input agent.ConceptContentInput) (string, error) {
	out, err := r.Agents.ResourceRecommender.Execute(ctx, input)
	if err != nil {
		return "", err
	}

	txMu.Lock()
	defer txMu.Unlock()

	id := uuid.NewString()
	if existing, getErr := scope.Resources.Get(ctx, roadmapID, conceptID); getErr == nil {
		id = existing.ID
	}

	rec := domain.ResourceRecommendationMetadata{ID: id, ConceptID: conceptID, RoadmapID: roadmapID, Resources: out.Resources}
	if err := scope.Resources.Upsert(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Runner) generateQuiz(ctx context.Context, scope *repo.Scope, txMu *sync.Mutex, roadmapID, conceptID string, input agent.ConceptContentInput) (string, error) {
	out, err := r.Agents.QuizGenerator.Execute(ctx, input)
	if err != nil {
		return "", err
	}

	txMu.Lock()
	defer txMu.Unlock()

	id := uuid.NewString()
	if existing, getErr := scope.Quizzes.Get(ctx, roadmapID, conceptID); getErr == nil {
		id = existing.QuizID
	}

	quiz := domain.QuizMetadata{QuizID: id, ConceptID: conceptID, RoadmapID: roadmapID, Questions: out.Questions}
	if err := scope.Quizzes.Upsert(ctx, quiz); err != nil {
		return "", err
	}
	return id, nil
}
