// Command contentworker polls the content queue and runs the bounded
// per-artifact-kind fan-out for each job, resolving the owning
// Task's terminal status once every (concept, kind) pair has an outcome.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/config"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow/content"
	"github.com/learnpath/roadmapgen/internal/workflow/nodes"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contentworker",
	Short: "Runs the bounded per-artifact-kind content generation fan-out",
	RunE:  runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("contentworker: build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(0); err != nil {
		return fmt.Errorf("contentworker: invalid configuration: %w", err)
	}

	db, err := repo.OpenPostgresPool(ctx, repo.PoolConfig{
		DSN: cfg.Pool.DSN, MaxOpenConns: cfg.Pool.MaxOpenConns,
		MaxIdleConns: cfg.Pool.MaxIdleConns, ConnMaxLifeSecs: cfg.Pool.ConnMaxLifeSecs,
	})
	if err != nil {
		return fmt.Errorf("contentworker: open postgres pool: %w", err)
	}
	defer db.Close()
	factory := repo.NewFactory(db, logger)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer redisClient.Close()
	q := queue.NewRedisAdapter(redisClient, logger)
	if err := q.EnsureGroup(ctx, queue.Content); err != nil {
		return fmt.Errorf("contentworker: ensure content consumer group: %w", err)
	}

	agentFactory, err := agent.NewFactory(variantConfigs(cfg))
	if err != nil {
		return fmt.Errorf("contentworker: build agent factory: %w", err)
	}
	agentSet, err := agent.BuildSet(agentFactory, agent.DefaultPrompts(), nil)
	if err != nil {
		return fmt.Errorf("contentworker: build agent set: %w", err)
	}

	runner := &content.Runner{Agents: agentSet, Factory: factory, Config: cfg.ContentConfig()}

	logger.Info("contentworker: polling", zap.String("queue", queue.Content))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := q.Poll(ctx, queue.Content)
		if errors.Is(err, queue.ErrEmpty) {
			time.Sleep(time.Second)
			continue
		}
		if err != nil {
			logger.Error("contentworker: poll failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := handleJob(ctx, runner, factory, job); err != nil {
			logger.Error("contentworker: job failed", zap.String("job_id", job.ID), zap.Error(err))
			_ = q.Nack(ctx, queue.Content, job.ID, 30*time.Second)
			continue
		}
		if err := q.Ack(ctx, queue.Content, job.ID); err != nil {
			logger.Error("contentworker: ack failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func variantConfigs(cfg config.Config) map[agent.Variant]agent.AgentConfig {
	out := make(map[agent.Variant]agent.AgentConfig, len(cfg.Agents))
	for name, c := range cfg.Agents {
		out[agent.Variant(name)] = c
	}
	return out
}

// handleJob runs one content job end to end: load the roadmap and its
// owning task's user profile, run the fan-out, and resolve the task's
// terminal status (completed/partial_failure/failed) from the
// per-artifact outcomes. The worker owns terminal-status resolution for
// content-bearing runs; the executor suspends after enqueuing the job
// and never sees the fan-out's results. Each kind's transaction inside
// Run already persisted its detail rows together with the framework
// projection, so the only write left here is the status.
func handleJob(ctx context.Context, runner *content.Runner, factory *repo.Factory, job queue.Job) error {
	var payload nodes.ContentJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal content job: %w", err)
	}

	loadScope, err := factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	task, err := loadScope.Tasks.Get(ctx, payload.TaskID)
	if err != nil {
		_ = loadScope.Rollback()
		return fmt.Errorf("load task %s: %w", payload.TaskID, err)
	}
	roadmap, err := loadScope.Roadmaps.Get(ctx, payload.RoadmapID)
	if err != nil {
		_ = loadScope.Rollback()
		return fmt.Errorf("load roadmap %s: %w", payload.RoadmapID, err)
	}
	profile, err := loadScope.Profiles.Get(ctx, task.UserID)
	if err != nil {
		profile = domain.UserProfile{UserID: task.UserID}
	}
	_ = loadScope.Rollback()

	results, err := runner.Run(ctx, &roadmap, profile)
	if err != nil {
		return fmt.Errorf("run fan-out: %w", err)
	}

	status := domain.TaskCompleted
	failures := 0
	for _, r := range results {
		if r.Status == domain.ConceptFailed {
			failures++
		}
	}
	if failures > 0 {
		if failures == len(results) {
			status = domain.TaskFailed
		} else {
			status = domain.TaskPartialFailure
		}
	}

	saveScope, err := factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	if err := saveScope.Tasks.UpdateStatus(ctx, payload.TaskID, status, domain.StepDone); err != nil {
		_ = saveScope.Rollback()
		return fmt.Errorf("update task status: %w", err)
	}
	return saveScope.Commit()
}
