package domain

import "time"

// RunVerdict is the terminal outcome of a supervisor run.
type RunVerdict string

const (
	VerdictCompleted RunVerdict = "completed"
	VerdictPartial   RunVerdict = "partial"
	VerdictAborted   RunVerdict = "aborted"
	VerdictDeadlock  RunVerdict = "deadlock"
)

// Run is one supervisor execution over a project spec.
type Run struct {
	ID          string     `db:"id"`
	ProjectName string     `db:"project_name"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	Verdict     RunVerdict `db:"verdict"`
	HealthScore float64    `db:"health_score"`
}
