// Command sweeper runs the recovery sweeper: it periodically finds
// Tasks stuck in a non-terminal state and either re-enqueues or fails
// them.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/learnpath/roadmapgen/internal/checkpoint"
	"github.com/learnpath/roadmapgen/internal/config"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/sweeper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Periodically recovers or fails stuck workflow tasks",
	RunE:  runSweeper,
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

func runSweeper(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("sweeper: build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(0); err != nil {
		return fmt.Errorf("sweeper: invalid configuration: %w", err)
	}

	db, err := repo.OpenPostgresPool(ctx, repo.PoolConfig{
		DSN: cfg.Pool.DSN, MaxOpenConns: cfg.Pool.MaxOpenConns,
		MaxIdleConns: cfg.Pool.MaxIdleConns, ConnMaxLifeSecs: cfg.Pool.ConnMaxLifeSecs,
	})
	if err != nil {
		return fmt.Errorf("sweeper: open postgres pool: %w", err)
	}
	defer db.Close()
	factory := repo.NewFactory(db, logger)

	cp, err := openCheckpointStore(cfg)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer redisClient.Close()
	q := queue.NewRedisAdapter(redisClient, logger)
	if err := q.EnsureGroup(ctx, queue.Content); err != nil {
		return fmt.Errorf("sweeper: ensure content consumer group: %w", err)
	}
	leases := sweeper.NewRedisLeaseStore(redisClient)

	s := sweeper.New(factory, cp, q, leases, sweeper.Config{
		Enable:        cfg.Recovery.Enable,
		MaxAge:        time.Duration(cfg.Recovery.MaxAgeHours) * time.Hour,
		MaxConcurrent: cfg.Recovery.MaxConcurrent,
		LeaseTTL:      time.Duration(cfg.Recovery.LeaseTTLSeconds) * time.Second,
		PollInterval:  time.Duration(cfg.Recovery.PollIntervalSecs) * time.Second,
	}, logger)

	logger.Info("sweeper: starting", zap.Bool("enabled", cfg.Recovery.Enable))
	s.Start(ctx)
	return nil
}

func openCheckpointStore(cfg config.Config) (*checkpoint.Facade, error) {
	switch cfg.Checkpoint.Backend {
	case "mysql":
		return checkpoint.OpenMySQL(checkpoint.OpenMySQLConfig{DSN: cfg.Checkpoint.MySQL.DSN})
	default:
		return checkpoint.OpenSQLite(checkpoint.OpenSQLiteConfig{Path: cfg.Checkpoint.SQLite.Path})
	}
}
