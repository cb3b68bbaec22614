package control

import (
	"context"

	"github.com/vietddude/autodev/internal/core/domain"
)

// Executor is the code-generation agent the supervisor drives. A returned
// error is an invocation fault (transport, auth); an in-band failure comes
// back as a marked response.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task, taskContext string) (string, error)
	ApplyFix(ctx context.Context, task *domain.Task, diagnostics string) (string, error)
}

// Builder builds and runs the generated services.
type Builder interface {
	Build(ctx context.Context) error
	Up(ctx context.Context) error
	Down(ctx context.Context)
	// LastError returns the diagnostics of the most recent failed invocation.
	LastError() string
}

// VCS commits and pushes completed work.
type VCS interface {
	Commit(ctx context.Context, task *domain.Task, results []domain.TestResult) error
	Push(ctx context.Context) error
}

// Verifier runs the multi-stage test pipeline for a service.
type Verifier interface {
	RunAll(ctx context.Context, svc *domain.ServiceSpec) []domain.TestResult
}

// PatternStore persists failure patterns across runs. Optional; a nil store
// keeps patterns in memory only.
type PatternStore interface {
	RecordFailure(ctx context.Context, key, message string) error
	RecordRecovery(ctx context.Context, key, strategy string) error
}
