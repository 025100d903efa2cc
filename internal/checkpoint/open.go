package checkpoint

import (
	"fmt"

	"github.com/learnpath/roadmapgen/graph/store"
	"github.com/learnpath/roadmapgen/internal/domain"
)

// OpenSQLiteConfig configures the development/single-process checkpoint
// backend. Zero value is not usable; Path must be set explicitly.
type OpenSQLiteConfig struct {
	// Path is the database file location, or ":memory:" for tests.
	Path string
}

// OpenSQLite opens (and migrates, via the underlying store's own
// createTables step) a SQLite-backed checkpoint store. It is never called
// from a package-level constructor; callers (cmd/api, cmd/contentworker)
// invoke it explicitly during startup after config validation.
func OpenSQLite(cfg OpenSQLiteConfig) (*Facade, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("checkpoint: sqlite path must not be empty")
	}
	s, err := store.NewSQLiteStore[domain.RoadmapState](cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite store: %w", err)
	}
	return New(s), nil
}

// OpenMySQLConfig configures the production checkpoint backend.
type OpenMySQLConfig struct {
	// DSN is a go-sql-driver/mysql data source name, e.g.
	// "user:pass@tcp(127.0.0.1:3306)/roadmapgen_checkpoints?parseTime=true".
	DSN string
}

// OpenMySQL opens a MySQL-backed checkpoint store. The pool (10 open
// conns, 5 idle) is fixed inside store.NewMySQLStore and kept separate
// from the business-data Postgres pool opened by internal/repo, so
// checkpoint writes never starve business transactions of connections.
func OpenMySQL(cfg OpenMySQLConfig) (*Facade, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("checkpoint: mysql dsn must not be empty")
	}
	s, err := store.NewMySQLStore[domain.RoadmapState](cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open mysql store: %w", err)
	}
	return New(s), nil
}
