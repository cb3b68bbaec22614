package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/infra/storage"
)

// RunRepo is an in-memory storage.RunRepository. It backs runs without a
// database and the supervisor tests.
type RunRepo struct {
	mu     sync.RWMutex
	runs   map[string]*domain.Run
	tasks  map[string][]*domain.Task
	errors map[string][]domain.ErrorContext
}

func NewRunRepo() *RunRepo {
	return &RunRepo{
		runs:   make(map[string]*domain.Run),
		tasks:  make(map[string][]*domain.Task),
		errors: make(map[string][]domain.ErrorContext),
	}
}

func (r *RunRepo) CreateRun(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *RunRepo) FinishRun(_ context.Context, runID string, verdict domain.RunVerdict, healthScore float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return storage.ErrRunNotFound
	}
	run.Verdict = verdict
	run.HealthScore = healthScore
	return nil
}

func (r *RunRepo) RecordTask(_ context.Context, runID string, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *task
	r.tasks[runID] = append(r.tasks[runID], &copied)
	return nil
}

func (r *RunRepo) RecordError(_ context.Context, runID string, ec domain.ErrorContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[runID] = append(r.errors[runID], ec)
	return nil
}

func (r *RunRepo) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (r *RunRepo) RecentRuns(_ context.Context, limit int) ([]*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Tasks returns the recorded task outcomes for a run. Test helper.
func (r *RunRepo) Tasks(runID string) []*domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*domain.Task(nil), r.tasks[runID]...)
}

// Errors returns the recorded errors for a run. Test helper.
func (r *RunRepo) Errors(runID string) []domain.ErrorContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ErrorContext(nil), r.errors[runID]...)
}
