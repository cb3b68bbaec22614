package domain

// ServiceSystem is the sentinel service name for tasks that belong to the
// project itself rather than any declared service (e.g. repository setup).
const ServiceSystem = "system"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskKind identifies the phase of service delivery a task implements.
type TaskKind string

const (
	TaskKindSetup     TaskKind = "setup"
	TaskKindScaffold  TaskKind = "scaffold"
	TaskKindImplement TaskKind = "implement"
	TaskKindTest      TaskKind = "test"
)

// Task is the atomic unit of orchestrated work. Created once by the planner,
// mutated only by the supervisor for the duration of a run.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ServiceName  string     `json:"service_name"`
	Kind         TaskKind   `json:"kind"`
	Dependencies []string   `json:"dependencies"`
	Status       TaskStatus `json:"status"`
}

// IsSystem reports whether the task is project-level work with no service
// build/verify surface.
func (t *Task) IsSystem() bool {
	return t.ServiceName == ServiceSystem
}
