// Command logsworker polls the logs queue and persists each job as an
// ExecutionLog row. By design this is the queue's only side effect: no notification-bus
// publishing happens here, since the bus is fed synchronously in-process
// by the node that produced the event.
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

	"github.com/learnpath/roadmapgen/internal/config"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "logsworker",
	Short: "Persists queued execution log entries",
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
		return fmt.Errorf("logsworker: build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(0); err != nil {
		return fmt.Errorf("logsworker: invalid configuration: %w", err)
	}

	db, err := repo.OpenPostgresPool(ctx, repo.PoolConfig{
		DSN: cfg.Pool.DSN, MaxOpenConns: cfg.Pool.MaxOpenConns,
		MaxIdleConns: cfg.Pool.MaxIdleConns, ConnMaxLifeSecs: cfg.Pool.ConnMaxLifeSecs,
	})
	if err != nil {
		return fmt.Errorf("logsworker: open postgres pool: %w", err)
	}
	defer db.Close()
	factory := repo.NewFactory(db, logger)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer redisClient.Close()
	q := queue.NewRedisAdapter(redisClient, logger)
	if err := q.EnsureGroup(ctx, queue.Logs); err != nil {
		return fmt.Errorf("logsworker: ensure logs consumer group: %w", err)
	}

	logger.Info("logsworker: polling", zap.String("queue", queue.Logs))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := q.Poll(ctx, queue.Logs)
		if errors.Is(err, queue.ErrEmpty) {
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if err != nil {
			logger.Error("logsworker: poll failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := appendLog(ctx, factory, job); err != nil {
			logger.Error("logsworker: append failed", zap.String("job_id", job.ID), zap.Error(err))
			_ = q.Nack(ctx, queue.Logs, job.ID, 10*time.Second)
			continue
		}
		if err := q.Ack(ctx, queue.Logs, job.ID); err != nil {
			logger.Error("logsworker: ack failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func appendLog(ctx context.Context, factory *repo.Factory, job queue.Job) error {
	var entry domain.ExecutionLog
	if err := json.Unmarshal(job.Payload, &entry); err != nil {
		return fmt.Errorf("unmarshal log entry: %w", err)
	}

	scope, err := factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := scope.Logs.Append(ctx, entry); err != nil {
		_ = scope.Rollback()
		return fmt.Errorf("append: %w", err)
	}
	return scope.Commit()
}
