// Command api is the HTTP boundary process: a thin chi router
// around internal/facade.Facade, the only process that serves external
// requests. It never runs the content fan-out itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/learnpath/roadmapgen/internal/agent"
	"github.com/learnpath/roadmapgen/internal/checkpoint"
	"github.com/learnpath/roadmapgen/internal/config"
	"github.com/learnpath/roadmapgen/internal/domain"
	"github.com/learnpath/roadmapgen/internal/facade"
	"github.com/learnpath/roadmapgen/internal/notify"
	"github.com/learnpath/roadmapgen/internal/queue"
	"github.com/learnpath/roadmapgen/internal/repo"
	"github.com/learnpath/roadmapgen/internal/statemgr"
	"github.com/learnpath/roadmapgen/internal/workflow"
	"github.com/learnpath/roadmapgen/internal/workflow/nodes"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Serves the roadmap generation request-handler façade over HTTP",
	RunE:  runAPI,
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

func runAPI(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("api: build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(0); err != nil {
		return fmt.Errorf("api: invalid configuration: %w", err)
	}

	db, err := repo.OpenPostgresPool(ctx, repo.PoolConfig{
		DSN: cfg.Pool.DSN, MaxOpenConns: cfg.Pool.MaxOpenConns,
		MaxIdleConns: cfg.Pool.MaxIdleConns, ConnMaxLifeSecs: cfg.Pool.ConnMaxLifeSecs,
	})
	if err != nil {
		return fmt.Errorf("api: open postgres pool: %w", err)
	}
	defer db.Close()
	if err := repo.Migrate(ctx, db); err != nil {
		return fmt.Errorf("api: migrate: %w", err)
	}
	factory := repo.NewFactory(db, logger)

	cp, err := openCheckpointStore(cfg)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer redisClient.Close()
	q := queue.NewRedisAdapter(redisClient, logger)
	if err := q.EnsureGroup(ctx, queue.Content); err != nil {
		return fmt.Errorf("api: ensure content consumer group: %w", err)
	}

	agentFactory, err := agent.NewFactory(variantConfigs(cfg))
	if err != nil {
		return fmt.Errorf("api: build agent factory: %w", err)
	}
	agentSet, err := agent.BuildSet(agentFactory, agent.DefaultPrompts(), nil)
	if err != nil {
		return fmt.Errorf("api: build agent set: %w", err)
	}

	state := statemgr.New()
	exec := workflow.New(buildNodes(agentSet, factory, q), cp, state, factory, logger)
	exec.RouterCfg = cfg.Router
	bus := notify.NewBus(0)
	exec.Notify = bus

	f := facade.New(factory, exec, q, bus, logger)

	r := chi.NewRouter()
	mountRoutes(r, f)

	srv := &http.Server{Addr: ":8080", Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WorkflowBudget())
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api: listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
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

func variantConfigs(cfg config.Config) map[agent.Variant]agent.AgentConfig {
	out := make(map[agent.Variant]agent.AgentConfig, len(cfg.Agents))
	for name, c := range cfg.Agents {
		out[agent.Variant(name)] = c
	}
	return out
}

func buildNodes(agents *agent.Set, factory *repo.Factory, q *queue.RedisAdapter) workflow.Nodes {
	return workflow.Nodes{
		Intent:     &nodes.IntentAnalysisRunner{Agent: agents.IntentAnalyzer, Factory: factory},
		Curriculum: &nodes.CurriculumDesignRunner{Agent: agents.CurriculumArchitect, Factory: factory},
		Validation: &nodes.ValidationRunner{Agent: agents.StructureValidator},
		Editor:     &nodes.EditorRunner{Agent: agents.RoadmapEditor, Factory: factory},
		Review:     &nodes.HumanReviewRunner{Factory: factory},
		Content:    &nodes.ContentRunner{Queue: q, Factory: factory},
	}
}

// mountRoutes wires the façade's operations behind a minimal JSON
// envelope; the HTTP/SSE surface itself is explicitly out of scope, so
// this stays routing-and-marshalling only.
func mountRoutes(r chi.Router, f *facade.Facade) {
	r.Post("/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string          `json:"user_id"`
			TaskType    string          `json:"task_type"`
			TaskID      string          `json:"task_id,omitempty"`
			UserRequest json.RawMessage `json:"user_request"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		taskID, err := f.Submit(r.Context(), req.UserID, req.TaskType, req.TaskID, req.UserRequest)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"task_id": taskID})
	})

	r.Get("/tasks/{taskID}", func(w http.ResponseWriter, r *http.Request) {
		status, err := f.GetStatus(r.Context(), chi.URLParam(r, "taskID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, status)
	})

	r.Post("/tasks/{taskID}/review", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Decision domain.ReviewDecision `json:"decision"`
			Notes    string                `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := f.Review(r.Context(), chi.URLParam(r, "taskID"), req.Decision, req.Notes); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/roadmaps/{roadmapID}/retry", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string                 `json:"user_id"`
			Kinds  []domain.ArtifactKind `json:"kinds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		taskID, err := f.RetryFailed(r.Context(), req.UserID, chi.URLParam(r, "roadmapID"), req.Kinds)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"task_id": taskID})
	})

	r.Post("/roadmaps/{roadmapID}/concepts/{conceptID}/regenerate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string                 `json:"user_id"`
			Kinds  []domain.ArtifactKind `json:"kinds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		taskID, err := f.RegenerateConcept(r.Context(), req.UserID, chi.URLParam(r, "roadmapID"), chi.URLParam(r, "conceptID"), req.Kinds)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"task_id": taskID})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
