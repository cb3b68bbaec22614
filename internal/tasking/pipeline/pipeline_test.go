package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/autodev/internal/core/domain"
)

// fakeRunner scripts command outcomes by substring match on the command line.
type fakeRunner struct {
	mu      sync.Mutex
	rules   []fakeRule
	history []string
}

type fakeRule struct {
	contains string
	out      Output
	err      error
}

func (f *fakeRunner) on(contains string, out Output, err error) {
	f.rules = append(f.rules, fakeRule{contains: contains, out: out, err: err})
}

func (f *fakeRunner) Run(_ context.Context, command string, _ time.Duration) (Output, error) {
	f.mu.Lock()
	f.history = append(f.history, command)
	f.mu.Unlock()

	for _, rule := range f.rules {
		if strings.Contains(command, rule.contains) {
			return rule.out, rule.err
		}
	}
	return Output{}, errors.New("command not found")
}

func (f *fakeRunner) ran(contains string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cmd := range f.history {
		if strings.Contains(cmd, contains) {
			return true
		}
	}
	return false
}

func backendSpec() *domain.ServiceSpec {
	return &domain.ServiceSpec{Name: "api", Type: domain.ServiceTypeBackend}
}

func mlSpec() *domain.ServiceSpec {
	return &domain.ServiceSpec{
		Name: "recommender",
		Type: domain.ServiceTypeML,
		QualityMetrics: []domain.QualityMetric{
			{Name: "accuracy", Threshold: 0.9, Operator: ">="},
		},
	}
}

func TestRunAll_StagePlanWithoutThresholds(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("pytest", Output{Stdout: "collected 4 items\n4 passed"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), backendSpec())

	if len(results) != 2 {
		t.Fatalf("expected unit+integration, got %d stages", len(results))
	}
	if results[0].Stage != domain.StageUnit || results[1].Stage != domain.StageIntegration {
		t.Errorf("stage order wrong: %s, %s", results[0].Stage, results[1].Stage)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("stage %s should pass: %s", r.Stage, r.ErrorMessage)
		}
	}
}

func TestRunAll_DomainQAOnlyWithThresholds(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("pytest", Output{Stdout: "1 passed"}, nil)
	exec.on("test_ml_recommender", Output{Stdout: "accuracy: 0.95"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), mlSpec())

	if len(results) != 3 {
		t.Fatalf("expected 3 stages for ML service, got %d", len(results))
	}
	if results[2].Stage != domain.StageDomainQA {
		t.Errorf("last stage = %s, want domain QA", results[2].Stage)
	}
	if !results[2].Passed {
		t.Errorf("QA stage should pass at accuracy 0.95: %s", results[2].ErrorMessage)
	}
}

func TestRunStage_ThresholdViolation(t *testing.T) {
	// accuracy >= 0.9 declared, 0.8 reported: the stage must fail and the
	// message must name the metric.
	exec := &fakeRunner{}
	exec.on("pytest", Output{Stdout: "1 passed"}, nil)
	exec.on("test_ml_recommender", Output{Stdout: "model trained\naccuracy: 0.8\ndone"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), mlSpec())

	qa := results[2]
	if qa.Passed {
		t.Fatal("QA stage must fail below threshold")
	}
	if !strings.Contains(qa.ErrorMessage, "accuracy") {
		t.Errorf("failure message should name the metric: %q", qa.ErrorMessage)
	}
}

func TestRunStage_MissingMetricFails(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("pytest", Output{Stdout: "1 passed"}, nil)
	exec.on("test_ml_recommender", Output{Stdout: "done, no metrics printed"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), mlSpec())

	qa := results[2]
	if qa.Passed {
		t.Fatal("QA stage must fail when a declared metric is missing")
	}
	if !strings.Contains(qa.ErrorMessage, "accuracy") {
		t.Errorf("failure message should name the missing metric: %q", qa.ErrorMessage)
	}
}

func TestRunStage_InvocationFallback(t *testing.T) {
	// First unit strategy errors, second succeeds; the stage still passes.
	exec := &fakeRunner{}
	exec.on("pytest tests/unit/api", Output{}, errors.New("pytest: not found"))
	exec.on("unittest discover", Output{Stdout: "collected 2 items\n2 passed"}, nil)
	exec.on("tests/integration", Output{Stdout: "1 passed"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), backendSpec())

	if !results[0].Passed {
		t.Errorf("unit stage should pass via fallback strategy: %s", results[0].ErrorMessage)
	}
	if !exec.ran("unittest discover") {
		t.Error("fallback strategy was never attempted")
	}
}

func TestRunStage_NoTestsIsNotAFailure(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("pytest", Output{Stdout: "collected 0 items\nno tests ran", ExitCode: 5}, nil)
	exec.on("unittest", Output{ExitCode: 1, Stderr: "no test files"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), backendSpec())

	for _, r := range results {
		if !r.Passed {
			t.Errorf("stage %s with no tests should pass, got failure: %s", r.Stage, r.ErrorMessage)
		}
	}
}

func TestRunStage_AllStrategiesFail(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("", Output{ExitCode: 1, Stderr: "assertion failed in test_handler"}, nil)

	results := New(exec, Config{}).RunAll(context.Background(), backendSpec())

	if results[0].Passed {
		t.Fatal("unit stage should fail when every strategy fails")
	}
	if !strings.Contains(results[0].ErrorMessage, "assertion failed") {
		t.Errorf("last diagnostic should be kept: %q", results[0].ErrorMessage)
	}
}

func TestRunStage_QualityGateShortCircuitsUnit(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("ruff", Output{ExitCode: 1, Stdout: "E501 line too long"}, nil)
	exec.on("pytest", Output{Stdout: "1 passed"}, nil)

	cfg := Config{Gates: []string{"ruff check ."}}
	results := New(exec, cfg).RunAll(context.Background(), backendSpec())

	if results[0].Passed {
		t.Fatal("unit stage must fail on gate findings")
	}
	if !strings.Contains(results[0].ErrorMessage, "quality gate") {
		t.Errorf("message should mention the gate: %q", results[0].ErrorMessage)
	}
	if exec.ran("tests/unit/api") {
		t.Error("unit tests must not run after gate findings")
	}
}

func TestRunStage_UnavailableGateIsSkipped(t *testing.T) {
	exec := &fakeRunner{}
	exec.on("ruff", Output{}, errors.New("ruff: not found"))
	exec.on("pytest", Output{Stdout: "3 passed"}, nil)

	cfg := Config{Gates: []string{"ruff check ."}}
	results := New(exec, cfg).RunAll(context.Background(), backendSpec())

	if !results[0].Passed {
		t.Errorf("missing gate tool must not block the stage: %s", results[0].ErrorMessage)
	}
}

func TestRunAll_PassingQAResultNeverFlippedWithoutThresholds(t *testing.T) {
	result := domain.TestResult{
		Stage:   domain.StageDomainQA,
		Passed:  true,
		Metrics: map[string]float64{"accuracy": 0.1},
	}
	validateThresholds(&result, nil)

	if !result.Passed {
		t.Error("validation without declared thresholds must never flip a pass")
	}
}
