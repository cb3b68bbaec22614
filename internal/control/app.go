package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/autodev/internal/core/config"
	"github.com/vietddude/autodev/internal/core/planner"
	"github.com/vietddude/autodev/internal/infra/agent"
	"github.com/vietddude/autodev/internal/infra/compose"
	redisclient "github.com/vietddude/autodev/internal/infra/redis"
	"github.com/vietddude/autodev/internal/infra/storage"
	"github.com/vietddude/autodev/internal/infra/storage/memory"
	"github.com/vietddude/autodev/internal/infra/storage/postgres"
	"github.com/vietddude/autodev/internal/infra/vcs"
	"github.com/vietddude/autodev/internal/tasking/health"
	"github.com/vietddude/autodev/internal/tasking/pipeline"
	"github.com/vietddude/autodev/internal/tasking/progress"
)

// App assembles the supervisor and its collaborators from configuration and
// manages their lifecycle.
type App struct {
	cfg          config.AppConfig
	tracker      *progress.Tracker
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	runRepo      storage.RunRepository
	patterns     PatternStore
	builder      *compose.Manager
	git          *vcs.Manager
	executor     Executor
	verifier     Verifier
}

// NewApp wires all dependencies. Optional backends (redis, postgres, status
// server) come up only when configured.
func NewApp(cfg config.AppConfig) (*App, error) {
	app := &App{
		cfg:     cfg,
		tracker: progress.NewTracker(),
	}

	// 1. Run-history storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		app.db = db
		app.runRepo = postgres.NewRunRepo(db)
		slog.Info("using postgresql run history")
	} else {
		app.runRepo = memory.NewRunRepo()
		slog.Info("using in-memory run history")
	}

	// 2. Failure-pattern store
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisClient = client
		app.patterns = client
		slog.Info("using redis failure patterns")
	}

	// 3. Execution collaborators
	agentCfg := cfg.Agent
	agentCfg.Root = cfg.Supervisor.ProjectRoot
	executor, err := agent.NewFallbackExecutor(agentCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init agent: %w", err)
	}
	app.executor = executor

	app.builder = compose.NewManager(cfg.Supervisor.ProjectRoot)
	app.verifier = pipeline.New(&pipeline.ExecRunner{Root: cfg.Supervisor.ProjectRoot}, pipeline.Config{})

	// 4. Status server
	if cfg.Server.Port > 0 {
		app.healthServer = health.NewServer(app.tracker, cfg.Server.Port)
	}

	return app, nil
}

// Run parses the project spec, drives the supervisor over it, and prints the
// end-of-run summary. A spec parse failure is fatal before any task starts.
func (a *App) Run(ctx context.Context, specPath string) (*Report, error) {
	spec, err := planner.ParseSpec(specPath)
	if err != nil {
		return nil, err
	}

	a.git = vcs.NewManager(a.cfg.Supervisor.ProjectRoot, spec.RepositoryURL, spec.Branch)
	if !a.cfg.Supervisor.SkipVCS {
		if err := a.git.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare repository: %w", err)
		}
	}
	if !a.cfg.Supervisor.SkipBuild {
		if err := a.builder.GenerateFile(spec); err != nil {
			return nil, err
		}
	}

	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("status server stopped", "error", err)
			}
		}()
	}

	supervisor := NewSupervisor(
		a.cfg.Supervisor,
		spec,
		a.executor,
		a.builder,
		a.git,
		a.verifier,
		a.tracker,
		a.runRepo,
		a.patterns,
	)

	report, runErr := supervisor.Run(ctx)
	if report != nil {
		fmt.Println(report.Summary())
	}
	return report, runErr
}

// Shutdown releases backends and tears down any services still running.
func (a *App) Shutdown(ctx context.Context) {
	if a.healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.healthServer.Stop(shutdownCtx); err != nil {
			slog.Warn("failed to stop status server", "error", err)
		}
		cancel()
	}
	if a.builder != nil && !a.cfg.Supervisor.SkipBuild {
		a.builder.Down(ctx)
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
