package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/tasking/metrics"
)

// Output captures one command invocation against the execution collaborator.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandRunner executes a shell command with a timeout. The pipeline never
// shells out directly; everything goes through this interface.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (Output, error)
}

// StageConfig describes one pipeline stage.
type StageConfig struct {
	Stage        domain.StageType
	Timeout      time.Duration
	Retries      int
	Overlappable bool
}

// Config tunes the pipeline runner.
type Config struct {
	// Gates are lint/security commands run before the unit stage. Findings
	// fail the unit stage without invoking it.
	Gates []string
	// Stages overrides the default stage plan when non-nil.
	Stages []StageConfig
}

// Runner drives the multi-stage test pipeline for one service at a time.
type Runner struct {
	exec  CommandRunner
	gates []string
	plan  []StageConfig
}

func New(exec CommandRunner, cfg Config) *Runner {
	return &Runner{
		exec:  exec,
		gates: cfg.Gates,
		plan:  cfg.Stages,
	}
}

func defaultPlan(svc *domain.ServiceSpec) []StageConfig {
	plan := []StageConfig{
		{Stage: domain.StageUnit, Timeout: 120 * time.Second, Retries: 1, Overlappable: true},
		{Stage: domain.StageIntegration, Timeout: 300 * time.Second, Retries: 2},
	}
	if len(svc.QualityMetrics) > 0 {
		plan = append(plan, StageConfig{
			Stage:   domain.StageDomainQA,
			Timeout: 600 * time.Second,
			Retries: 1,
		})
	}
	return plan
}

// RunAll executes every configured stage for the service and returns one
// TestResult per stage, in configuration order. Consecutive overlappable
// stages run concurrently; isolated stages run alone. A failed stage does not
// stop the remaining stages.
func (r *Runner) RunAll(ctx context.Context, svc *domain.ServiceSpec) []domain.TestResult {
	plan := r.plan
	if plan == nil {
		plan = defaultPlan(svc)
	}

	results := make([]domain.TestResult, len(plan))

	for i := 0; i < len(plan); {
		if !plan[i].Overlappable {
			results[i] = r.runStage(ctx, svc, plan[i])
			i++
			continue
		}

		// Batch of consecutive overlappable stages.
		j := i
		for j < len(plan) && plan[j].Overlappable {
			j++
		}
		g, gctx := errgroup.WithContext(ctx)
		for k := i; k < j; k++ {
			k := k
			g.Go(func() error {
				results[k] = r.runStage(gctx, svc, plan[k])
				return nil
			})
		}
		_ = g.Wait() // stage goroutines never return errors
		i = j
	}

	return results
}

func (r *Runner) runStage(ctx context.Context, svc *domain.ServiceSpec, cfg StageConfig) domain.TestResult {
	result := r.execStage(ctx, svc, cfg)
	metrics.StageDuration.
		WithLabelValues(string(cfg.Stage), strconv.FormatBool(result.Passed)).
		Observe(result.Duration.Seconds())
	return result
}

func (r *Runner) execStage(ctx context.Context, svc *domain.ServiceSpec, cfg StageConfig) domain.TestResult {
	start := time.Now()
	slog.Info("running test stage", "service", svc.Name, "stage", cfg.Stage)

	if cfg.Stage == domain.StageUnit {
		if msg := r.runGates(ctx); msg != "" {
			return domain.TestResult{
				Stage:        cfg.Stage,
				Passed:       false,
				Duration:     time.Since(start),
				ErrorMessage: msg,
			}
		}
	}

	commands := commandsFor(cfg.Stage, svc)

	var lastDiag string
	var transcripts []string
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		for _, cmd := range commands {
			out, err := r.exec.Run(ctx, cmd, cfg.Timeout)
			if err != nil {
				lastDiag = fmt.Sprintf("%s: %v", cmd, err)
				continue
			}
			transcripts = append(transcripts, out.Stdout, out.Stderr)
			if out.ExitCode != 0 {
				lastDiag = firstNonEmpty(strings.TrimSpace(out.Stderr), strings.TrimSpace(out.Stdout), cmd)
				continue
			}

			result := domain.TestResult{
				Stage:    cfg.Stage,
				Passed:   true,
				Duration: time.Since(start),
				Metrics:  parseMetrics(cfg.Stage, out.Stdout, svc),
			}
			if cfg.Stage == domain.StageUnit {
				if cov, ok := parseCoverage(out.Stdout); ok {
					result.Coverage = &cov
				}
			}
			if cfg.Stage == domain.StageDomainQA {
				validateThresholds(&result, svc.QualityMetrics)
			}
			return result
		}
		if ctx.Err() != nil {
			break
		}
	}

	// Absence of tests is not a failure: tasks without a verifiable surface
	// must not be blocked by the pipeline.
	if noTestsFound(transcripts) {
		slog.Info("no tests found for stage", "service", svc.Name, "stage", cfg.Stage)
		return domain.TestResult{
			Stage:    cfg.Stage,
			Passed:   true,
			Duration: time.Since(start),
			Metrics:  map[string]float64{"tests_found": 0},
		}
	}

	if lastDiag == "" {
		lastDiag = "all invocation strategies failed"
	}
	return domain.TestResult{
		Stage:        cfg.Stage,
		Passed:       false,
		Duration:     time.Since(start),
		ErrorMessage: lastDiag,
	}
}

// runGates executes the configured lint/security commands. A non-zero exit
// with output counts as findings; a missing tool is logged and skipped.
func (r *Runner) runGates(ctx context.Context) string {
	for _, cmd := range r.gates {
		out, err := r.exec.Run(ctx, cmd, 60*time.Second)
		if err != nil {
			slog.Warn("quality gate unavailable", "command", cmd, "error", err)
			continue
		}
		if out.ExitCode != 0 {
			findings := firstNonEmpty(strings.TrimSpace(out.Stdout), strings.TrimSpace(out.Stderr), "findings reported")
			return fmt.Sprintf("quality gate failed (%s): %s", firstWord(cmd), truncate(findings, 500))
		}
	}
	return ""
}

var noTestMarkers = []string{
	"no tests ran",
	"no tests found",
	"no test files",
	"collected 0 items",
}

func noTestsFound(transcripts []string) bool {
	for _, t := range transcripts {
		lower := strings.ToLower(t)
		for _, marker := range noTestMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
