package vcs

import (
	"strings"
	"testing"

	"github.com/vietddude/autodev/internal/core/domain"
)

func TestCommitMessage(t *testing.T) {
	task := &domain.Task{ID: "implement-api", Title: "Implement api"}
	results := []domain.TestResult{
		{Stage: domain.StageUnit, Passed: true},
		{Stage: domain.StageIntegration, Passed: false},
	}

	msg := commitMessage(task, results)

	if !strings.HasPrefix(msg, "feat: complete task implement-api") {
		t.Errorf("message prefix wrong: %q", msg)
	}
	if !strings.Contains(msg, "unit: pass") || !strings.Contains(msg, "integration: fail") {
		t.Errorf("test summary missing: %q", msg)
	}
}

func TestCommitMessage_NoResults(t *testing.T) {
	task := &domain.Task{ID: "scaffold-api", Title: "Scaffold api"}
	msg := commitMessage(task, nil)

	if strings.Contains(msg, "Test summary") {
		t.Errorf("empty results should omit the summary: %q", msg)
	}
}
