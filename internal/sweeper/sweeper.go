// Package sweeper implements the recovery sweeper: on process
// startup and then periodically, it finds Tasks stuck in a non-terminal
// state whose celery_task_id is not currently executing and either
// re-enqueues them (a checkpoint exists to resume from) or marks them
// failed "unrecoverable" (no checkpoint exists). Re-enqueueing first
// converges the roadmap's framework_data projection against the
// committed detail rows, closing the window where a crash between
// per-kind commits left the projection behind. Concurrent-executor
// protection is an advisory, TTL-bounded lease per workflow_id, backed
// by Redis SETNX — grounded on jordigilh-kubernaut's use of
// github.com/redis/go-redis/v9 for exactly this kind of shared
// coordination primitive.
package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnpath/roadmapgen/internal/checkpoint"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow/nodes"
)

// LeaseStore is the advisory coordination primitive backing concurrent-
// executor protection. Acquire is a SETNX-style
// conditional claim; Release clears a lease this worker holds.
type LeaseStore interface {
	Acquire(ctx context.Context, workflowID, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, workflowID, workerID string) error
}

// Config enumerates the sweeper's tunables.
type Config struct {
	Enable           bool
	MaxAge           time.Duration
	MaxConcurrent    int
	LeaseTTL         time.Duration
	PollInterval     time.Duration
}

// DefaultConfig matches the documented defaults: 24h age threshold, lease
// TTL 90s, poll every 60s.
func DefaultConfig() Config {
	return Config{
		Enable:        true,
		MaxAge:        24 * time.Hour,
		MaxConcurrent: 5,
		LeaseTTL:      90 * time.Second,
		PollInterval:  60 * time.Second,
	}
}

// Sweeper runs the periodic stuck-task scan. New never starts the
// ticker itself; callers invoke Start(ctx) explicitly once
// Config.Enable has been checked.
type Sweeper struct {
	Factory    *repo.Factory
	Checkpoint *checkpoint.Facade
	Queue      queue.Adapter
	Leases     LeaseStore
	Config     Config
	Logger     *zap.Logger

	workerID string
}

// New builds a Sweeper. It performs no I/O.
func New(factory *repo.Factory, cp *checkpoint.Facade, q queue.Adapter, leases LeaseStore, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Factory:    factory,
		Checkpoint: cp,
		Queue:      q,
		Leases:     leases,
		Config:     cfg,
		Logger:     logger,
		workerID:   uuid.NewString(),
	}
}

// Start runs one Sweep immediately on process startup
// and then repeats on Config.PollInterval until ctx is cancelled. It is a
// no-op if Config.Enable is false. Callers run Start in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.Config.Enable {
		s.Logger.Info("sweeper: recovery disabled, not starting")
		return
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.Config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if err := s.Sweep(ctx); err != nil {
		s.Logger.Error("sweeper: sweep pass failed", zap.Error(err))
	}
}

// Sweep performs a single scan: list stuck tasks, then attempt recovery
// on up to Config.MaxConcurrent of them. A task whose lease this sweeper
// fails to acquire is left alone — another worker's executor, or a
// concurrent sweeper, currently owns it.
func (s *Sweeper) Sweep(ctx context.Context) error {
	scope, err := s.Factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sweeper: begin: %w", err)
	}
	stuck, err := scope.Tasks.ListStuck(ctx, time.Now().Add(-s.Config.MaxAge))
	_ = scope.Rollback()
	if err != nil {
		return fmt.Errorf("sweeper: list stuck tasks: %w", err)
	}

	limit := s.Config.MaxConcurrent
	if limit <= 0 || limit > len(stuck) {
		limit = len(stuck)
	}

	recovered, failed := 0, 0
	for _, task := range stuck[:limit] {
		acted, err := s.recoverOne(ctx, task)
		if err != nil {
			s.Logger.Warn("sweeper: recovery attempt failed", zap.String("task_id", task.TaskID), zap.Error(err))
			continue
		}
		if acted {
			recovered++
		} else {
			failed++
		}
	}
	if recovered > 0 || failed > 0 {
		s.Logger.Info("sweeper: sweep complete",
			zap.Int("candidates", len(stuck)), zap.Int("re_enqueued", recovered), zap.Int("marked_unrecoverable", failed))
	}
	return nil
}

// recoverOne attempts to recover a single stuck task. acted reports
// whether this sweeper took the re-enqueue branch (true) or the
// unrecoverable branch (false); it is meaningless when err != nil or the
// lease wasn't acquired.
func (s *Sweeper) recoverOne(ctx context.Context, task domain.Task) (acted bool, err error) {
	acquired, err := s.Leases.Acquire(ctx, task.TaskID, s.workerID, s.Config.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("acquire lease for %s: %w", task.TaskID, err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if releaseErr := s.Leases.Release(ctx, task.TaskID, s.workerID); releaseErr != nil {
			s.Logger.Warn("sweeper: lease release failed", zap.String("task_id", task.TaskID), zap.Error(releaseErr))
		}
	}()

	if _, _, err := s.Checkpoint.LoadLatestForTask(ctx, task.TaskID); err != nil {
		return s.markUnrecoverable(ctx, task)
	}
	return s.reenqueue(ctx, task)
}

// reenqueue re-submits task onto the content queue with a fresh external
// id, the same queue the original content node enqueued onto. Before
// re-submitting, the framework_data projection is converged against the
// detail rows, so the resumed fan-out only regenerates artifacts that
// genuinely never landed. Resuming from the checkpoint itself is the
// content worker's job once it picks the job back up.
func (s *Sweeper) reenqueue(ctx context.Context, task domain.Task) (bool, error) {
	roadmapID := ""
	if task.RoadmapID != nil {
		roadmapID = *task.RoadmapID
	}
	if roadmapID != "" {
		if err := s.reconcile(ctx, roadmapID); err != nil {
			return false, fmt.Errorf("reconcile roadmap %s: %w", roadmapID, err)
		}
	}
	payload, err := json.Marshal(nodes.ContentJob{TaskID: task.TaskID, RoadmapID: roadmapID})
	if err != nil {
		return false, fmt.Errorf("marshal content job for %s: %w", task.TaskID, err)
	}
	jobID, err := s.Queue.Enqueue(ctx, queue.Content, payload)
	if err != nil {
		return false, fmt.Errorf("re-enqueue %s: %w", task.TaskID, err)
	}

	scope, err := s.Factory.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin re-enqueue commit for %s: %w", task.TaskID, err)
	}
	fresh, err := scope.Tasks.Get(ctx, task.TaskID)
	if err != nil {
		_ = scope.Rollback()
		return false, fmt.Errorf("reload %s: %w", task.TaskID, err)
	}
	fresh.CeleryTaskID = jobID
	if err := scope.Tasks.Upsert(ctx, fresh); err != nil {
		_ = scope.Rollback()
		return false, fmt.Errorf("record fresh celery id for %s: %w", task.TaskID, err)
	}
	if err := scope.Commit(); err != nil {
		return false, fmt.Errorf("commit re-enqueue for %s: %w", task.TaskID, err)
	}
	return true, nil
}

// reconcile restores the dual-store invariant for one roadmap: any
// (concept, kind) with a committed detail row but a stale framework_data
// status gets marked completed with its reference id filled in. Detail
// rows are the source of truth; the projection is whatever survived the
// crash, and may be arbitrarily behind it.
func (s *Sweeper) reconcile(ctx context.Context, roadmapID string) error {
	scope, err := s.Factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	roadmap, err := scope.Roadmaps.Get(ctx, roadmapID)
	if err != nil {
		_ = scope.Rollback()
		if errors.Is(err, repo.ErrNotFound) {
			return nil // no framework persisted yet: nothing to converge
		}
		return fmt.Errorf("load roadmap: %w", err)
	}

	changed := false
	for _, c := range roadmap.Framework.AllConcepts() {
		if c.ContentStatus != domain.ConceptCompleted {
			tutorial, err := scope.Tutorials.GetLatest(ctx, roadmapID, c.ConceptID)
			if err == nil {
				c.SetStatusFor(domain.ArtifactTutorial, domain.ConceptCompleted)
				c.SetRefFor(domain.ArtifactTutorial, tutorial.TutorialID)
				changed = true
			} else if !errors.Is(err, repo.ErrNotFound) {
				_ = scope.Rollback()
				return fmt.Errorf("check tutorial row for %s: %w", c.ConceptID, err)
			}
		}
		if c.ResourcesStatus != domain.ConceptCompleted {
			rec, err := scope.Resources.Get(ctx, roadmapID, c.ConceptID)
			if err == nil {
				c.SetStatusFor(domain.ArtifactResources, domain.ConceptCompleted)
				c.SetRefFor(domain.ArtifactResources, rec.ID)
				changed = true
			} else if !errors.Is(err, repo.ErrNotFound) {
				_ = scope.Rollback()
				return fmt.Errorf("check resource row for %s: %w", c.ConceptID, err)
			}
		}
		if c.QuizStatus != domain.ConceptCompleted {
			quiz, err := scope.Quizzes.Get(ctx, roadmapID, c.ConceptID)
			if err == nil {
				c.SetStatusFor(domain.ArtifactQuiz, domain.ConceptCompleted)
				c.SetRefFor(domain.ArtifactQuiz, quiz.QuizID)
				changed = true
			} else if !errors.Is(err, repo.ErrNotFound) {
				_ = scope.Rollback()
				return fmt.Errorf("check quiz row for %s: %w", c.ConceptID, err)
			}
		}
	}

	if !changed {
		_ = scope.Rollback()
		return nil
	}
	if err := scope.Roadmaps.Upsert(ctx, roadmap); err != nil {
		_ = scope.Rollback()
		return fmt.Errorf("persist converged framework: %w", err)
	}
	if err := scope.Commit(); err != nil {
		return fmt.Errorf("commit converged framework: %w", err)
	}
	return nil
}

// markUnrecoverable is the no-checkpoint branch: the task can never be
// resumed, so it is moved straight to a terminal failed state with reason
// "unrecoverable".
func (s *Sweeper) markUnrecoverable(ctx context.Context, task domain.Task) (bool, error) {
	scope, err := s.Factory.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin mark-unrecoverable for %s: %w", task.TaskID, err)
	}
	fresh, err := scope.Tasks.Get(ctx, task.TaskID)
	if err != nil {
		_ = scope.Rollback()
		return false, fmt.Errorf("reload %s: %w", task.TaskID, err)
	}
	fresh.Status = domain.TaskFailed
	fresh.ErrorPayload = []byte(`{"reason":"unrecoverable"}`)
	if err := scope.Tasks.Upsert(ctx, fresh); err != nil {
		_ = scope.Rollback()
		return false, fmt.Errorf("mark %s unrecoverable: %w", task.TaskID, err)
	}
	if err := scope.Commit(); err != nil {
		return false, fmt.Errorf("commit mark-unrecoverable for %s: %w", task.TaskID, err)
	}
	return false, nil
}
