package repo

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PoolConfig bounds the business-data Postgres pool, kept separate from
// the checkpoint store's own pool (internal/checkpoint) so business
// traffic and checkpoint traffic never contend for connections.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifeSecs int
}

// ValidatePoolConfig refuses obviously broken pool settings before a
// caller opens a connection; cmd/api and the worker entrypoints call this
// during config validation, never inside a constructor.
func ValidatePoolConfig(cfg PoolConfig) error {
	if cfg.DSN == "" {
		return fmt.Errorf("repo: postgres dsn must not be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return fmt.Errorf("repo: max_open_conns must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 || cfg.MaxIdleConns > cfg.MaxOpenConns {
		return fmt.Errorf("repo: max_idle_conns (%d) must be between 0 and max_open_conns (%d)", cfg.MaxIdleConns, cfg.MaxOpenConns)
	}
	return nil
}

// OpenPostgresPool opens the business-data pool. It is never called from
// a repository or Factory constructor; callers invoke it once at process
// startup after ValidatePoolConfig passes.
func OpenPostgresPool(ctx context.Context, cfg PoolConfig) (*sqlx.DB, error) {
	if err := ValidatePoolConfig(cfg); err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repo: open postgres pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifeSecs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSecs) * time.Second)
	}
	return db, nil
}

// Factory builds transaction-scoped Scopes over an already-open pool.
// It never opens a connection itself — construction is a pure wrapper.
type Factory struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewFactory wraps db. db must already be open (see OpenPostgresPool).
func NewFactory(db *sqlx.DB, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{db: db, logger: logger}
}

// Scope bundles one *sqlx.Tx with every repository, so a caller opens one
// transaction, does its work, and commits or rolls back exactly once. No
// repository method call ever issues its own COMMIT.
type Scope struct {
	tx *sqlx.Tx

	Tasks      TaskRepo
	Roadmaps   RoadmapRepo
	Tutorials  TutorialRepo
	Resources  ResourceRepo
	Quizzes    QuizRepo
	Intents    IntentRepo
	Profiles   ProfileRepo
	Logs       LogRepo
}

// Begin opens a new transaction and wires every repository onto it.
func (f *Factory) Begin(ctx context.Context) (*Scope, error) {
	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repo: begin transaction: %w", err)
	}
	return &Scope{
		tx:        tx,
		Tasks:     &taskRepo{tx: tx},
		Roadmaps:  &roadmapRepo{tx: tx},
		Tutorials: &tutorialRepo{tx: tx},
		Resources: &resourceRepo{tx: tx},
		Quizzes:   &quizRepo{tx: tx},
		Intents:   &intentRepo{tx: tx},
		Profiles:  &profileRepo{tx: tx},
		Logs:      &logRepo{tx: tx},
	}, nil
}

// Commit commits the underlying transaction.
func (s *Scope) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("repo: commit: %w", err)
	}
	return nil
}

// Rollback rolls back the underlying transaction. Calling Rollback after
// a successful Commit is a no-op error from database/sql and is safe to
// ignore in a deferred cleanup.
func (s *Scope) Rollback() error {
	return s.tx.Rollback()
}
