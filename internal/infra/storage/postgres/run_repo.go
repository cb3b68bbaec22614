package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/infra/storage"
)

// RunRepo implements storage.RunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// CreateRun inserts the run header at start.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, project_name, started_at, verdict, health_score)
		VALUES ($1, $2, $3, $4, $5)
	`
	verdict := run.Verdict
	if verdict == "" {
		verdict = domain.VerdictPartial
	}

	_, err := r.db.ExecContext(ctx, query, run.ID, run.ProjectName, run.StartedAt, verdict, run.HealthScore)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal verdict and health score.
func (r *RunRepo) FinishRun(ctx context.Context, runID string, verdict domain.RunVerdict, healthScore float64) error {
	query := `
		UPDATE runs
		SET verdict = $2, health_score = $3, finished_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, runID, verdict, healthScore)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrRunNotFound
	}
	return nil
}

// RecordTask records a task's final state for the run.
func (r *RunRepo) RecordTask(ctx context.Context, runID string, task *domain.Task) error {
	query := `
		INSERT INTO run_tasks (run_id, task_id, title, service_name, kind, status, dependencies, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (run_id, task_id) DO UPDATE SET status = EXCLUDED.status
	`
	deps := strings.Join(task.Dependencies, ",")
	_, err := r.db.ExecContext(ctx, query,
		runID, task.ID, task.Title, task.ServiceName, task.Kind, task.Status, deps)
	if err != nil {
		return fmt.Errorf("failed to record task: %w", err)
	}
	return nil
}

// RecordError appends one classified error.
func (r *RunRepo) RecordError(ctx context.Context, runID string, ec domain.ErrorContext) error {
	query := `
		INSERT INTO run_errors (run_id, task_id, service_name, phase, error_type, message, severity, category, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		runID, ec.TaskID, ec.ServiceName, ec.Phase, ec.ErrorType, ec.Message, ec.Severity, ec.Category, ec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}
	return nil
}

// GetRun retrieves a run header by id.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT id, project_name, started_at, finished_at, verdict, health_score
		FROM runs
		WHERE id = $1
	`
	var run domain.Run
	err := r.db.GetContext(ctx, &run, query, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// RecentRuns lists the newest runs first.
func (r *RunRepo) RecentRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	query := `
		SELECT id, project_name, started_at, finished_at, verdict, health_score
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	var runs []*domain.Run
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
