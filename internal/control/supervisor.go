package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/autodev/internal/core/config"
	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/core/planner"
	"github.com/vietddude/autodev/internal/infra/agent"
	"github.com/vietddude/autodev/internal/infra/storage"
	"github.com/vietddude/autodev/internal/tasking/progress"
	"github.com/vietddude/autodev/internal/tasking/recovery"
)

// ErrPlannerDeadlock reports a dependency graph where nothing is runnable,
// nothing failed, yet pending tasks remain.
var ErrPlannerDeadlock = errors.New("planner deadlock: cyclic or malformed dependency graph")

// Supervisor is the top-level control loop: it pulls runnable tasks from the
// planner, executes each with bounded retries and recovery strategies, drives
// build and verification, and reports every outcome to the progress tracker.
// The loop is single-threaded; one task is in flight at a time.
type Supervisor struct {
	cfg      config.SupervisorConfig
	spec     *domain.ProjectSpec
	executor Executor
	builder  Builder
	vcs      VCS
	verifier Verifier
	tracker  *progress.Tracker
	runRepo  storage.RunRepository
	patterns PatternStore

	backoff recovery.Backoff
	// wait blocks for the backoff delay; injectable so tests run instantly.
	wait func(ctx context.Context, d time.Duration) error

	tasks    []*domain.Task
	history  []domain.ErrorContext
	outcomes map[string]*taskOutcome
	runID    string
}

// taskOutcome accumulates per-task recovery history for the report.
type taskOutcome struct {
	strategies []recovery.Strategy
	categories map[domain.ErrorCategory]int
	escalated  bool
	reason     string
}

// attemptState is the per-task retry chain: which strategies were tried and
// which failures accumulated.
type attemptState struct {
	tried    map[recovery.Strategy]bool
	failures []domain.ErrorContext
	// credited names the strategy that actually set up the next attempt.
	// Cleared on every failure so a plain backoff retry succeeding later does
	// not credit a strategy that produced nothing.
	credited recovery.Strategy
	// haveArtifact marks that a recovery strategy already produced and
	// applied a fresh implementation, so the next attempt skips execution.
	haveArtifact bool
	skipBackoff  bool
}

// NewSupervisor wires a supervisor for one project spec.
func NewSupervisor(
	cfg config.SupervisorConfig,
	spec *domain.ProjectSpec,
	executor Executor,
	builder Builder,
	vcs VCS,
	verifier Verifier,
	tracker *progress.Tracker,
	runRepo storage.RunRepository,
	patterns PatternStore,
) *Supervisor {
	backoff := recovery.DefaultBackoff()
	if cfg.BackoffCap > 0 {
		backoff.Cap = cfg.BackoffCap
	}
	return &Supervisor{
		cfg:      cfg,
		spec:     spec,
		executor: executor,
		builder:  builder,
		vcs:      vcs,
		verifier: verifier,
		tracker:  tracker,
		runRepo:  runRepo,
		patterns: patterns,
		backoff:  backoff,
		wait:     sleepCtx,
		outcomes: make(map[string]*taskOutcome),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the whole task graph. A context abort records the in-flight
// task as Failed before teardown. The returned report is non-nil whenever the
// run started, including aborted and partially failed runs.
func (s *Supervisor) Run(ctx context.Context) (*Report, error) {
	s.runID = uuid.NewString()
	s.tasks = planner.Expand(s.spec)
	s.tracker.SetTotalTasks(len(s.tasks))

	run := &domain.Run{
		ID:          s.runID,
		ProjectName: s.spec.Name,
		StartedAt:   time.Now(),
	}
	if err := s.runRepo.CreateRun(ctx, run); err != nil {
		slog.Warn("failed to persist run header", "error", err)
	}

	slog.Info("starting run",
		"run", s.runID, "project", s.spec.Name, "tasks", len(s.tasks))

	var verdict domain.RunVerdict
	var runErr error

loop:
	for {
		if err := ctx.Err(); err != nil {
			verdict, runErr = domain.VerdictAborted, err
			break
		}

		next := planner.NextRunnable(s.tasks)
		if next == nil {
			switch {
			case planner.AllCompleted(s.tasks):
				verdict = domain.VerdictCompleted
			case planner.Deadlocked(s.tasks):
				verdict, runErr = domain.VerdictDeadlock, ErrPlannerDeadlock
			default:
				verdict = domain.VerdictPartial
			}
			break loop
		}

		if err := s.runTask(ctx, next); err != nil {
			// Only a context abort propagates; task failures are recorded
			// and the loop continues with whatever remains runnable.
			verdict, runErr = domain.VerdictAborted, err
			break loop
		}
	}

	return s.finish(ctx, verdict), runErr
}

func (s *Supervisor) finish(ctx context.Context, verdict domain.RunVerdict) *Report {
	// Persist against a fresh context: the run context may already be dead.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, task := range s.tasks {
		if err := s.runRepo.RecordTask(persistCtx, s.runID, task); err != nil {
			slog.Warn("failed to persist task outcome", "task", task.ID, "error", err)
		}
	}

	score := s.tracker.HealthScore()
	if err := s.runRepo.FinishRun(persistCtx, s.runID, verdict, score); err != nil {
		slog.Warn("failed to persist run verdict", "error", err)
	}

	report := s.buildReport(verdict, score)
	slog.Info("run finished",
		"run", s.runID, "verdict", verdict, "health", fmt.Sprintf("%.2f", score),
		"completed", report.Completed, "failed", len(report.FailedTasks))
	return report
}

// runTask drives one task through its bounded attempt chain. Returns an error
// only on context abort.
func (s *Supervisor) runTask(ctx context.Context, task *domain.Task) error {
	slog.Info("starting task", "task", task.ID, "service", task.ServiceName, "kind", task.Kind)
	task.Status = domain.TaskStatusInProgress
	s.tracker.TaskStarted(task.ID)

	state := &attemptState{tried: make(map[recovery.Strategy]bool)}
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			s.tracker.RetryAttempted(task.ID, attempt)
			if !state.skipBackoff {
				if err := s.wait(ctx, s.backoff.Delay(attempt-1)); err != nil {
					return s.abortTask(task, state, err)
				}
			}
			state.skipBackoff = false
		}
		if err := ctx.Err(); err != nil {
			return s.abortTask(task, state, err)
		}

		ec := s.attempt(ctx, task, state)
		if ec == nil {
			s.completeTask(ctx, task, state, attempt)
			return nil
		}
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.recordFailure(ctx, task, state, *ec)
			return s.abortTask(task, state, ctx.Err())
		}

		s.recordFailure(ctx, task, state, *ec)
		state.credited = ""

		// Strategy exhaustion is report metadata, not a terminal condition:
		// the chain keeps retrying plainly until the attempt bound. The last
		// attempt gets no strategy application; its artifact could never run.
		if s.cfg.AdvancedRecovery && attempt < maxRetries-1 {
			strategy := recovery.Select(ec.Category, state.tried)
			if strategy == recovery.StrategyEscalate {
				if !s.outcome(task).escalated {
					s.outcome(task).escalated = true
					slog.Warn("recovery strategies exhausted, retrying plainly",
						"task", task.ID, "category", ec.Category, "attempt", attempt+1)
				}
			} else {
				state.tried[strategy] = true
				s.outcome(task).strategies = append(s.outcome(task).strategies, strategy)
				slog.Warn("task attempt failed, applying recovery",
					"task", task.ID, "category", ec.Category, "severity", ec.Severity,
					"strategy", strategy, "attempt", attempt+1)
				s.applyStrategy(ctx, task, state, strategy)
			}
		}
	}

	s.failTask(task, state)
	return nil
}

// attempt runs one full implement/build/verify/commit cycle. A nil return is
// success; otherwise the classified failure is returned.
func (s *Supervisor) attempt(ctx context.Context, task *domain.Task, state *attemptState) *domain.ErrorContext {
	if !state.haveArtifact {
		result, err := s.executor.Execute(ctx, task, s.taskContext(task, state))
		if err != nil {
			ec := recovery.Classify(err, s.scope(task, "execute"))
			return &ec
		}
		if agent.IsFailure(result) {
			ec := recovery.ClassifyMessage(result, s.scope(task, "execute"))
			return &ec
		}
	}
	state.haveArtifact = false

	// System tasks complete on execution success alone.
	if task.IsSystem() {
		return nil
	}

	if !s.cfg.SkipBuild {
		if ec := s.buildPhase(ctx, task); ec != nil {
			return ec
		}
	}

	var results []domain.TestResult
	if task.Kind != domain.TaskKindScaffold {
		var ec *domain.ErrorContext
		results, ec = s.verifyPhase(ctx, task)
		if ec != nil {
			return ec
		}
	}

	if !s.cfg.SkipVCS {
		if ec := s.commitPhase(ctx, task, results); ec != nil {
			return ec
		}
	}
	return nil
}

// buildPhase builds the services; on failure it requests a fix with the build
// diagnostics and rebuilds once. A second failure aborts the attempt.
func (s *Supervisor) buildPhase(ctx context.Context, task *domain.Task) *domain.ErrorContext {
	if err := s.builder.Build(ctx); err != nil {
		slog.Warn("build failed, requesting fix", "task", task.ID)
		diagnostics := s.builder.LastError()

		fix, fixErr := s.executor.ApplyFix(ctx, task, diagnostics)
		if fixErr != nil || agent.IsFailure(fix) {
			ec := recovery.ClassifyMessage("docker build failed: "+diagnostics, s.scope(task, "build"))
			return &ec
		}
		if err := s.builder.Build(ctx); err != nil {
			ec := recovery.ClassifyMessage("docker build failed after fix: "+s.builder.LastError(), s.scope(task, "build"))
			return &ec
		}
	}

	if err := s.builder.Up(ctx); err != nil {
		ec := recovery.Classify(err, s.scope(task, "build"))
		return &ec
	}
	return nil
}

// verifyPhase runs the test pipeline; on failure it requests a fix with the
// concatenated stage diagnostics and re-verifies exactly once.
func (s *Supervisor) verifyPhase(ctx context.Context, task *domain.Task) ([]domain.TestResult, *domain.ErrorContext) {
	svc := s.serviceFor(task)
	results := s.verifier.RunAll(ctx, svc)
	failures := failedStages(results)
	if len(failures) == 0 {
		return results, nil
	}

	slog.Warn("verification failed, requesting fix", "task", task.ID, "stages", len(failures))
	fix, err := s.executor.ApplyFix(ctx, task, strings.Join(failures, "\n"))
	if err != nil || agent.IsFailure(fix) {
		ec := recovery.ClassifyMessage("test failures: "+strings.Join(failures, "; "), s.scope(task, "verify"))
		return results, &ec
	}

	results = s.verifier.RunAll(ctx, svc)
	if failures := failedStages(results); len(failures) > 0 {
		ec := recovery.ClassifyMessage("test failures persist after fix: "+strings.Join(failures, "; "), s.scope(task, "verify"))
		return results, &ec
	}
	return results, nil
}

func (s *Supervisor) commitPhase(ctx context.Context, task *domain.Task, results []domain.TestResult) *domain.ErrorContext {
	if err := s.vcs.Commit(ctx, task, results); err != nil {
		ec := recovery.Classify(err, s.scope(task, "commit"))
		return &ec
	}
	if err := s.vcs.Push(ctx); err != nil {
		ec := recovery.Classify(err, s.scope(task, "commit"))
		return &ec
	}
	return nil
}

// applyStrategy produces a replacement artifact for the next attempt. When the
// strategy yields a clean artifact the next attempt runs immediately, without
// backoff.
func (s *Supervisor) applyStrategy(ctx context.Context, task *domain.Task, state *attemptState, strategy recovery.Strategy) {
	var result string
	var err error

	switch strategy {
	case recovery.StrategyRetry:
		// Plain re-execution next attempt.
		state.credited = strategy
		return
	case recovery.StrategyEnrichContext:
		result, err = s.executor.ApplyFix(ctx, task, s.failureDigest(state))
	case recovery.StrategyAlternative:
		result, err = s.executor.Execute(ctx, task,
			"The previous approach failed. Take a completely different approach.\n"+s.failureDigest(state))
	case recovery.StrategySimplify:
		result, err = s.executor.Execute(ctx, task,
			"Implement a simplified version covering only the essential requirements.\n"+s.failureDigest(state))
	case recovery.StrategyDecompose:
		result, err = s.executor.Execute(ctx, task,
			"Implement only the core functionality of this task; defer everything optional.\n"+s.failureDigest(state))
	default:
		return
	}

	if err != nil || agent.IsFailure(result) {
		slog.Warn("recovery strategy produced no artifact", "task", task.ID, "strategy", strategy)
		return
	}
	state.credited = strategy
	state.haveArtifact = true
	state.skipBackoff = true
}

func (s *Supervisor) completeTask(ctx context.Context, task *domain.Task, state *attemptState, attempt int) {
	task.Status = domain.TaskStatusCompleted
	s.tracker.TaskCompleted(task.ID)
	if state.credited != "" {
		s.tracker.RecoverySucceeded(task.ID, string(state.credited))
		if s.patterns != nil {
			if err := s.patterns.RecordRecovery(ctx, s.patternKey(task), string(state.credited)); err != nil {
				slog.Warn("failed to record recovery pattern", "error", err)
			}
		}
	}
	slog.Info("task completed", "task", task.ID, "attempts", attempt+1)
}

func (s *Supervisor) failTask(task *domain.Task, state *attemptState) {
	task.Status = domain.TaskStatusFailed
	reason := "retries exhausted"
	if len(state.failures) > 0 {
		reason = state.failures[len(state.failures)-1].Message
	}
	s.outcome(task).reason = reason
	s.tracker.TaskFailed(task.ID, reason)
	slog.Error("task failed", "task", task.ID, "reason", reason)
}

// abortTask records the in-flight task as Failed with its partial history and
// propagates the abort.
func (s *Supervisor) abortTask(task *domain.Task, state *attemptState, cause error) error {
	task.Status = domain.TaskStatusFailed
	s.outcome(task).reason = "run aborted: " + cause.Error()
	s.tracker.TaskFailed(task.ID, "run aborted")
	slog.Warn("task aborted", "task", task.ID, "error", cause)
	return cause
}

func (s *Supervisor) recordFailure(ctx context.Context, task *domain.Task, state *attemptState, ec domain.ErrorContext) {
	ec.RecoveryAttempts = len(state.failures)
	s.history = append(s.history, ec)
	state.failures = append(state.failures, ec)
	s.tracker.ErrorOccurred(ec)
	s.outcome(task).categories[ec.Category]++

	if err := s.runRepo.RecordError(ctx, s.runID, ec); err != nil {
		slog.Warn("failed to persist error", "error", err)
	}
	if s.patterns != nil {
		if err := s.patterns.RecordFailure(ctx, s.patternKey(task), ec.Message); err != nil {
			slog.Warn("failed to record failure pattern", "error", err)
		}
	}
}

// taskContext builds the execution prompt context: the service type hint plus
// a digest of the most recent failures in this task's attempt chain.
func (s *Supervisor) taskContext(task *domain.Task, state *attemptState) string {
	var b strings.Builder
	if svc := s.spec.Service(task.ServiceName); svc != nil {
		fmt.Fprintf(&b, "Service type: %s\n", svc.Type)
	}
	if digest := s.failureDigest(state); digest != "" {
		b.WriteString(digest)
	}
	return b.String()
}

// failureDigest formats the last few failures of the current attempt chain.
func (s *Supervisor) failureDigest(state *attemptState) string {
	window := s.cfg.FailureWindow
	if window <= 0 {
		window = 3
	}
	failures := state.failures
	if len(failures) > window {
		failures = failures[len(failures)-window:]
	}
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous failures:\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", f.Category, f.Phase, f.Message)
	}
	return b.String()
}

func (s *Supervisor) scope(task *domain.Task, phase string) recovery.Scope {
	return recovery.Scope{
		TaskID:      task.ID,
		ServiceName: task.ServiceName,
		Phase:       phase,
	}
}

func (s *Supervisor) serviceFor(task *domain.Task) *domain.ServiceSpec {
	if svc := s.spec.Service(task.ServiceName); svc != nil {
		return svc
	}
	return &domain.ServiceSpec{Name: task.ServiceName}
}

func (s *Supervisor) patternKey(task *domain.Task) string {
	return task.ServiceName + ":" + task.Title
}

func (s *Supervisor) outcome(task *domain.Task) *taskOutcome {
	o, ok := s.outcomes[task.ID]
	if !ok {
		o = &taskOutcome{categories: make(map[domain.ErrorCategory]int)}
		s.outcomes[task.ID] = o
	}
	return o
}

func failedStages(results []domain.TestResult) []string {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s stage failed: %s", r.Stage, r.ErrorMessage))
		}
	}
	return failures
}
