package config_test

import (
	"testing"

	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/config"
)

func completeAgents() map[string]agent.AgentConfig {
	out := make(map[string]agent.AgentConfig, len(agent.AllVariants))
	for _, v := range agent.AllVariants {
		out[string(v)] = agent.AgentConfig{Provider: agent.ProviderAnthropic, Model: "test-model"}
	}
	return out
}

func validConfig() config.Config {
	return config.Config{
		Pool:       config.PoolConfig{DSN: "postgres://x", MaxOpenConns: 50, MaxIdleConns: 10},
		Checkpoint: config.CheckpointConfig{Backend: "sqlite", SQLite: struct {
			Path string `mapstructure:"path"`
		}{Path: "checkpoints.db"}},
		Router:   config.Config{}.Router,
		Recovery: config.RecoveryConfig{LeaseTTLSeconds: 90},
		Agents:   completeAgents(),
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	if err := validConfig().Validate(0); err != nil {
		t.Fatalf("expected a valid config to pass, got: %v", err)
	}
}

func TestConfig_Validate_PoolExceedsDBMargin(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.MaxOpenConns = 95
	if err := cfg.Validate(100); err == nil {
		t.Fatal("expected pool size to violate the 10-connection DB margin")
	}
}

func TestConfig_Validate_PoolWithinDBMargin(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.MaxOpenConns = 50
	if err := cfg.Validate(100); err != nil {
		t.Fatalf("expected pool size within margin to pass, got: %v", err)
	}
}

func TestConfig_Validate_UnknownCheckpointBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Checkpoint.Backend = "postgres"
	if err := cfg.Validate(0); err == nil {
		t.Fatal("expected an unknown checkpoint backend to fail validation")
	}
}

func TestConfig_Validate_MissingMySQLDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Checkpoint.Backend = "mysql"
	if err := cfg.Validate(0); err == nil {
		t.Fatal("expected a missing mysql dsn to fail validation")
	}
}

func TestConfig_Validate_NegativeMaxEditCycles(t *testing.T) {
	cfg := validConfig()
	cfg.Router.MaxEditCycles = -1
	if err := cfg.Validate(0); err == nil {
		t.Fatal("expected a negative max_edit_cycles to fail validation")
	}
}

func TestConfig_Validate_NonPositiveLeaseTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Recovery.LeaseTTLSeconds = 0
	if err := cfg.Validate(0); err == nil {
		t.Fatal("expected a non-positive lease ttl to fail validation")
	}
}

func TestConfig_Validate_MissingAgentVariant(t *testing.T) {
	cfg := validConfig()
	delete(cfg.Agents, string(agent.VariantQuizModifier))
	if err := cfg.Validate(0); err == nil {
		t.Fatal("expected a missing agent variant config to fail validation")
	}
}

func TestConfig_Load_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.MaxOpenConns != 50 {
		t.Errorf("expected default pool.max_open_conns 50, got %d", cfg.Pool.MaxOpenConns)
	}
	if cfg.Checkpoint.Backend != "sqlite" {
		t.Errorf("expected default checkpoint backend sqlite, got %q", cfg.Checkpoint.Backend)
	}
	if cfg.Recovery.LeaseTTLSeconds != 90 {
		t.Errorf("expected default lease ttl 90s, got %d", cfg.Recovery.LeaseTTLSeconds)
	}
	if cfg.Router.MaxEditCycles != 2 {
		t.Errorf("expected default router.max_edit_cycles 2, got %d", cfg.Router.MaxEditCycles)
	}
}

func TestConfig_ContentConfig_OverridesSemaphoreCaps(t *testing.T) {
	cfg := validConfig()
	cfg.Semaphore = map[string]int64{"tutorial": 3}

	cc := cfg.ContentConfig()
	if cc.Semaphore["tutorial"] != 3 {
		t.Errorf("expected overridden tutorial cap 3, got %d", cc.Semaphore["tutorial"])
	}
	if cc.Semaphore["quiz"] != 10 {
		t.Errorf("expected default quiz cap 10 to survive, got %d", cc.Semaphore["quiz"])
	}
}
