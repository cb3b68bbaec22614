package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vietddude/autodev/internal/core/domain"
)

// Manager commits and pushes the generated project through the git binary.
type Manager struct {
	root    string
	repoURL string
	branch  string
}

func NewManager(root, repoURL, branch string) *Manager {
	if branch == "" {
		branch = "main"
	}
	return &Manager{root: root, repoURL: repoURL, branch: branch}
}

// Init ensures the project root is a git repository with an origin remote.
func (m *Manager) Init(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(m.root, ".git")); err == nil {
		return nil
	}
	if _, err := m.git(ctx, "init", "-b", m.branch); err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	if m.repoURL != "" {
		if _, err := m.git(ctx, "remote", "add", "origin", m.repoURL); err != nil {
			return fmt.Errorf("failed to add origin: %w", err)
		}
	}
	return nil
}

// Commit stages everything and commits with a message describing the task and
// its test outcomes. Nothing to commit counts as success.
func (m *Manager) Commit(ctx context.Context, task *domain.Task, results []domain.TestResult) error {
	if _, err := m.git(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}

	out, err := m.git(ctx, "commit", "-m", commitMessage(task, results))
	if err != nil {
		if strings.Contains(strings.ToLower(out), "nothing to commit") {
			slog.Debug("nothing to commit", "task", task.ID)
			return nil
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Push pushes the branch to origin. Auth failures are tolerated with a log:
// unattended runs commonly lack push credentials, and losing the run over it
// would discard finished work.
func (m *Manager) Push(ctx context.Context) error {
	out, err := m.git(ctx, "push", "origin", m.branch+":"+m.branch)
	if err != nil {
		lower := strings.ToLower(out)
		if strings.Contains(lower, "authentication") || strings.Contains(lower, "permission denied") ||
			strings.Contains(lower, "could not read") {
			slog.Warn("push skipped, no credentials", "branch", m.branch)
			return nil
		}
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.root

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.String()
	if err != nil {
		return out, fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(out))
	}
	return out, nil
}

func commitMessage(task *domain.Task, results []domain.TestResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "feat: complete task %s\n\n", task.ID)
	fmt.Fprintf(&b, "Task: %s - %s\n", task.ID, task.Title)

	if len(results) > 0 {
		b.WriteString("Test summary:\n")
		for _, r := range results {
			status := "pass"
			if !r.Passed {
				status = "fail"
			}
			fmt.Fprintf(&b, "  - %s: %s\n", r.Stage, status)
		}
	}
	return b.String()
}
