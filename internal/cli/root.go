package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/autodev/internal/control"
	"github.com/vietddude/autodev/internal/core/config"
)

var (
	cfgPath   string
	specPath  string
	isDebug   bool
	skipVCS   bool
	skipBuild bool
)

var rootCmd = &cobra.Command{
	Use:   "autodev",
	Short: "Autonomous development supervisor",
	Long:  `Autodev drives a code-generation agent through implement, build, verify and commit cycles over a project's task graph, recovering from failures along the way.`,
	Run:   runSupervisor,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.Flags().StringVar(&specPath, "spec", "project.yaml", "project spec file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&skipVCS, "skip-vcs", false, "skip git commit/push")
	rootCmd.Flags().BoolVar(&skipBuild, "skip-build", false, "skip docker build/up")
}

func runSupervisor(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	if skipVCS {
		cfg.Supervisor.SkipVCS = true
	}
	if skipBuild {
		cfg.Supervisor.SkipBuild = true
	}

	app, err := control.NewApp(*cfg)
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM abort the run; the in-flight task is recorded before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := app.Run(ctx, specPath)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	app.Shutdown(shutdownCtx)

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		slog.Warn("Run aborted by signal")
		os.Exit(130)
	case runErr != nil:
		slog.Error("Run failed", "error", runErr)
		os.Exit(1)
	case report != nil && len(report.FailedTasks) > 0:
		os.Exit(2)
	}
}
