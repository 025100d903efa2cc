// Package config loads the process-wide configuration surface:
// pool sizes, queue credentials, per-variant agent configs, semaphore
// caps, router defaults, recovery sweeper settings, and timeouts. Built
// on github.com/spf13/viper so every process role reads the same file
// and environment surface.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/workflow"
	"github.com/learnpath/roadmapgen/internal/workflow/content"
)

// PoolConfig is the business-data Postgres pool section of Config.
type PoolConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifeSecs int    `mapstructure:"conn_max_life_secs"`
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	Backend  string `mapstructure:"backend"` // "sqlite" or "mysql"
	SQLite   struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`
	MySQL struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
}

// QueueConfig configures the Redis-backed task queue adapter.
type QueueConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RecoveryConfig configures the sweeper.
type RecoveryConfig struct {
	Enable          bool `mapstructure:"enable"`
	MaxAgeHours     int  `mapstructure:"max_age_hours"`
	MaxConcurrent   int  `mapstructure:"max_concurrent"`
	LeaseTTLSeconds int  `mapstructure:"lease_ttl_seconds"`
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
}

// TimeoutConfig configures the soft per-LLM-call and whole-workflow
// timeouts.
type TimeoutConfig struct {
	LLMCallSecs      int `mapstructure:"llm_call_secs"`
	WorkflowBudgetSecs int `mapstructure:"workflow_budget_secs"`
}

// Config is the complete process-wide configuration surface, loaded once
// at startup by cmd/api, cmd/contentworker, cmd/logsworker, cmd/sweeper.
type Config struct {
	Pool       PoolConfig             `mapstructure:"pool"`
	Checkpoint CheckpointConfig       `mapstructure:"checkpoint"`
	Queue      QueueConfig            `mapstructure:"queue"`
	Router     workflow.RouterConfig  `mapstructure:"router"`
	Semaphore  map[string]int64       `mapstructure:"semaphore"`
	Recovery   RecoveryConfig         `mapstructure:"recovery"`
	Timeouts   TimeoutConfig          `mapstructure:"timeouts"`
	Agents     map[string]agent.AgentConfig `mapstructure:"agents"`
}

// envPrefix is the viper AutomaticEnv prefix: ROADMAPGEN_POOL_DSN,
// ROADMAPGEN_QUEUE_ADDR, and so on.
const envPrefix = "ROADMAPGEN"

// Load builds a viper instance from an optional config file plus
// ROADMAPGEN_-prefixed environment overrides and unmarshals it into a
// Config. It never opens a connection or pool; that remains the
// process entrypoint's explicit next step.
func Load(configPath string) (Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("pool.max_open_conns", 50)
	v.SetDefault("pool.max_idle_conns", 10)
	v.SetDefault("pool.conn_max_life_secs", 1800)

	v.SetDefault("checkpoint.backend", "sqlite")
	v.SetDefault("checkpoint.sqlite.path", "roadmapgen-checkpoints.db")

	v.SetDefault("queue.addr", "127.0.0.1:6379")
	v.SetDefault("queue.db", 0)

	v.SetDefault("router.max_edit_cycles", 2)
	v.SetDefault("router.validation_score_threshold", 0.8)

	v.SetDefault("semaphore.tutorial", 10)
	v.SetDefault("semaphore.resources", 10)
	v.SetDefault("semaphore.quiz", 10)

	v.SetDefault("recovery.enable", true)
	v.SetDefault("recovery.max_age_hours", 24)
	v.SetDefault("recovery.max_concurrent", 5)
	v.SetDefault("recovery.lease_ttl_seconds", 90)
	v.SetDefault("recovery.poll_interval_secs", 60)

	v.SetDefault("timeouts.llm_call_secs", 120)
	v.SetDefault("timeouts.workflow_budget_secs", 1800)
}

// Validate audits the configuration against itself and, where dbMaxConns
// is > 0 (the DB's advertised maximum was discovered at startup), against
// that external limit. It refuses to let the process start if the pool's
// configured connections would exceed the database's own advertised
// maximum minus a 10-connection margin — (pool_size + max_overflow) <
// DB max_connections.
func (c Config) Validate(dbMaxConns int) error {
	if err := repo.ValidatePoolConfig(repo.PoolConfig{
		DSN:             c.Pool.DSN,
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifeSecs: c.Pool.ConnMaxLifeSecs,
	}); err != nil {
		return err
	}
	if dbMaxConns > 0 && c.Pool.MaxOpenConns+10 > dbMaxConns {
		return fmt.Errorf("config: pool.max_open_conns (%d) plus the required 10-connection margin exceeds the database's advertised max_connections (%d)", c.Pool.MaxOpenConns, dbMaxConns)
	}

	switch c.Checkpoint.Backend {
	case "sqlite":
		if c.Checkpoint.SQLite.Path == "" {
			return fmt.Errorf("config: checkpoint.sqlite.path must not be empty")
		}
	case "mysql":
		if c.Checkpoint.MySQL.DSN == "" {
			return fmt.Errorf("config: checkpoint.mysql.dsn must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown checkpoint.backend %q", c.Checkpoint.Backend)
	}

	if c.Router.MaxEditCycles < 0 {
		return fmt.Errorf("config: router.max_edit_cycles must not be negative")
	}
	if c.Recovery.LeaseTTLSeconds <= 0 {
		return fmt.Errorf("config: recovery.lease_ttl_seconds must be positive")
	}
	for _, v := range agent.AllVariants {
		if _, ok := c.Agents[string(v)]; !ok {
			return fmt.Errorf("config: missing agent configuration for variant %q", v)
		}
	}
	return nil
}

// ContentConfig projects the semaphore map into internal/workflow/content's
// Config shape.
func (c Config) ContentConfig() content.Config {
	cc := content.DefaultConfig()
	for kind, cap := range c.Semaphore {
		cc.Semaphore[domain.ArtifactKind(kind)] = cap
	}
	return cc
}

// LLMCallTimeout and WorkflowBudget convert the configured second counts
// into time.Duration.
func (c Config) LLMCallTimeout() time.Duration {
	return time.Duration(c.Timeouts.LLMCallSecs) * time.Second
}

func (c Config) WorkflowBudget() time.Duration {
	return time.Duration(c.Timeouts.WorkflowBudgetSecs) * time.Second
}
