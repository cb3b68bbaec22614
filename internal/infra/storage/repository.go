package storage

import (
	"context"
	"errors"

	"github.com/vietddude/autodev/internal/core/domain"
)

var (
	// ErrRunNotFound is returned when a run doesn't exist
	ErrRunNotFound = errors.New("run not found")
)

// RunRepository persists run history: one header row per run, task outcome
// rows, and classified error rows.
type RunRepository interface {
	// CreateRun inserts the run header at start.
	CreateRun(ctx context.Context, run *domain.Run) error

	// FinishRun records the terminal verdict and health score.
	FinishRun(ctx context.Context, runID string, verdict domain.RunVerdict, healthScore float64) error

	// RecordTask records a task's final state for the run.
	RecordTask(ctx context.Context, runID string, task *domain.Task) error

	// RecordError appends one classified error.
	RecordError(ctx context.Context, runID string, ec domain.ErrorContext) error

	// GetRun retrieves a run header by id.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// RecentRuns lists the newest runs first.
	RecentRuns(ctx context.Context, limit int) ([]*domain.Run, error)
}
