package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/autodev/internal/core/domain"
)

// SetupTaskID is the synthetic root task every scaffold depends on.
const SetupTaskID = "setup-repo"

// ParseSpec resolves a declarative project document into a ProjectSpec.
// A parse failure here is fatal to the run.
func ParseSpec(path string) (*domain.ProjectSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project spec: %w", err)
	}

	var spec domain.ProjectSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse project spec: %w", err)
	}

	if spec.Name == "" {
		return nil, fmt.Errorf("project spec missing name")
	}
	if len(spec.Services) == 0 {
		return nil, fmt.Errorf("project spec declares no services")
	}
	if spec.Branch == "" {
		spec.Branch = "main"
	}

	return &spec, nil
}

// Expand turns a project spec into the initial task list. The expansion is
// deterministic: the setup task first, then scaffold/implement/test per
// service in declaration order. Implement depends on scaffold, test on
// implement; scaffold depends on the setup task and on the scaffold tasks of
// every declared service dependency.
func Expand(spec *domain.ProjectSpec) []*domain.Task {
	tasks := make([]*domain.Task, 0, 1+3*len(spec.Services))

	tasks = append(tasks, &domain.Task{
		ID:          SetupTaskID,
		Title:       "Initialize Repository",
		Description: fmt.Sprintf("Clone or create repository at %s", spec.RepositoryURL),
		ServiceName: domain.ServiceSystem,
		Kind:        domain.TaskKindSetup,
		Status:      domain.TaskStatusPending,
	})

	for _, svc := range spec.Services {
		scaffoldID := "scaffold-" + svc.Name
		implementID := "implement-" + svc.Name
		testID := "test-" + svc.Name

		scaffoldDeps := []string{SetupTaskID}
		for _, dep := range svc.Dependencies {
			scaffoldDeps = append(scaffoldDeps, "scaffold-"+dep)
		}

		tasks = append(tasks,
			&domain.Task{
				ID:    scaffoldID,
				Title: fmt.Sprintf("Scaffold %s", svc.Name),
				Description: fmt.Sprintf(
					"Create initial structure for %s. Type: %s. Desc: %s",
					svc.Name, svc.Type, svc.Description),
				ServiceName:  svc.Name,
				Kind:         domain.TaskKindScaffold,
				Dependencies: scaffoldDeps,
				Status:       domain.TaskStatusPending,
			},
			&domain.Task{
				ID:           implementID,
				Title:        fmt.Sprintf("Implement %s", svc.Name),
				Description:  fmt.Sprintf("Implement core logic for %s", svc.Name),
				ServiceName:  svc.Name,
				Kind:         domain.TaskKindImplement,
				Dependencies: []string{scaffoldID},
				Status:       domain.TaskStatusPending,
			},
			&domain.Task{
				ID:           testID,
				Title:        fmt.Sprintf("Test %s", svc.Name),
				Description:  fmt.Sprintf("Run tests for %s", svc.Name),
				ServiceName:  svc.Name,
				Kind:         domain.TaskKindTest,
				Dependencies: []string{implementID},
				Status:       domain.TaskStatusPending,
			},
		)
	}

	return tasks
}

// NextRunnable returns the first pending task, in creation order, whose
// dependencies are all completed. Returns nil when nothing is runnable;
// callers distinguish "all done" from "blocked" via AllCompleted/Deadlocked.
func NextRunnable(tasks []*domain.Task) *domain.Task {
	completed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.TaskStatusCompleted {
			completed[t.ID] = true
		}
	}

	for _, t := range tasks {
		if t.Status != domain.TaskStatusPending {
			continue
		}
		runnable := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				runnable = false
				break
			}
		}
		if runnable {
			return t
		}
	}
	return nil
}

// AllCompleted reports whether every task finished successfully.
func AllCompleted(tasks []*domain.Task) bool {
	for _, t := range tasks {
		if t.Status != domain.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// Failed returns the tasks that exhausted their retries.
func Failed(tasks []*domain.Task) []*domain.Task {
	var failed []*domain.Task
	for _, t := range tasks {
		if t.Status == domain.TaskStatusFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Deadlocked reports the planner-deadlock condition: nothing is runnable and
// nothing failed, yet pending tasks remain. This is the signature of a cyclic
// or malformed dependency graph and must surface as its own terminal error.
func Deadlocked(tasks []*domain.Task) bool {
	if NextRunnable(tasks) != nil {
		return false
	}
	pending := false
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskStatusFailed:
			return false
		case domain.TaskStatusPending:
			pending = true
		}
	}
	return pending
}
