package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/tasking/metrics"
)

// EventType labels a task lifecycle notification.
type EventType string

const (
	EventTaskStarted        EventType = "task_started"
	EventTaskCompleted      EventType = "task_completed"
	EventTaskFailed         EventType = "task_failed"
	EventErrorOccurred      EventType = "error_occurred"
	EventRecoverySuccessful EventType = "recovery_successful"
	EventRetryAttempted     EventType = "retry_attempted"
	EventMilestoneReached   EventType = "milestone_reached"
)

// Event is one entry in the bounded lifecycle log.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the aggregate state. Observers always
// receive a copy, never a live reference.
type Snapshot struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	TotalErrors     int     `json:"total_errors"`
	RecoveredErrors int     `json:"recovered_errors"`
	HealthScore     float64 `json:"health_score"`
	Events          []Event `json:"events"`
}

// Observer receives each event with a snapshot. Observers must be fast; they
// are invoked inline on the recording goroutine.
type Observer func(Event, Snapshot)

const maxEvents = 1000

// Tracker records task lifecycle events and derives aggregate run metrics.
// It performs no I/O beyond in-memory state and observer invocation.
type Tracker struct {
	mu sync.Mutex

	events []Event

	totalTasks      int
	completedTasks  int
	failedTasks     int
	inProgressTasks int
	totalErrors     int
	recoveredErrors int

	observers []Observer
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Subscribe registers an observer for subsequent events.
func (t *Tracker) Subscribe(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

// SetTotalTasks fixes the task count the completion rate is measured against.
func (t *Tracker) SetTotalTasks(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalTasks = n
}

func (t *Tracker) TaskStarted(taskID string) {
	t.mu.Lock()
	t.inProgressTasks++
	metrics.TasksInProgress.Inc()
	t.record(EventTaskStarted, taskID, "")
	t.mu.Unlock()
}

func (t *Tracker) TaskCompleted(taskID string) {
	t.mu.Lock()
	if t.inProgressTasks > 0 {
		t.inProgressTasks--
		metrics.TasksInProgress.Dec()
	}
	t.completedTasks++
	metrics.TasksTotal.WithLabelValues(string(domain.TaskStatusCompleted)).Inc()
	t.record(EventTaskCompleted, taskID, "")
	t.mu.Unlock()
}

func (t *Tracker) TaskFailed(taskID, reason string) {
	t.mu.Lock()
	if t.inProgressTasks > 0 {
		t.inProgressTasks--
		metrics.TasksInProgress.Dec()
	}
	t.failedTasks++
	metrics.TasksTotal.WithLabelValues(string(domain.TaskStatusFailed)).Inc()
	t.record(EventTaskFailed, taskID, reason)
	t.mu.Unlock()
}

func (t *Tracker) ErrorOccurred(ec domain.ErrorContext) {
	t.mu.Lock()
	t.totalErrors++
	metrics.ErrorsTotal.WithLabelValues(string(ec.Category), string(ec.Severity)).Inc()
	t.record(EventErrorOccurred, ec.TaskID, ec.Message)
	t.mu.Unlock()
}

func (t *Tracker) RecoverySucceeded(taskID, strategy string) {
	t.mu.Lock()
	t.recoveredErrors++
	metrics.RecoveriesTotal.WithLabelValues(strategy).Inc()
	t.record(EventRecoverySuccessful, taskID, strategy)
	t.mu.Unlock()
}

func (t *Tracker) RetryAttempted(taskID string, attempt int) {
	t.mu.Lock()
	metrics.RetriesTotal.Inc()
	t.record(EventRetryAttempted, taskID, fmt.Sprintf("attempt %d", attempt))
	t.mu.Unlock()
}

func (t *Tracker) Milestone(message string) {
	t.mu.Lock()
	t.record(EventMilestoneReached, "", message)
	t.mu.Unlock()
}

// Snapshot returns a copy of the current aggregate state including the event
// log. Safe to retain across goroutines.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// HealthScore derives the bounded run health indicator:
// completion rate minus an error penalty plus a recovery bonus, clamped to
// [0, 1]. A run with no tasks scores 0.
func (t *Tracker) HealthScore() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.healthLocked()
}

func (t *Tracker) healthLocked() float64 {
	if t.totalTasks == 0 {
		return 0
	}

	completion := float64(t.completedTasks) / float64(t.totalTasks)

	penalty := float64(t.totalErrors) / (2 * float64(t.totalTasks))
	if penalty > 1 {
		penalty = 1
	}

	bonus := float64(t.recoveredErrors) / float64(t.totalErrors+1)
	if bonus > 0.2 {
		bonus = 0.2
	}

	score := completion - penalty + bonus
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (t *Tracker) snapshotLocked() Snapshot {
	events := make([]Event, len(t.events))
	copy(events, t.events)
	return Snapshot{
		TotalTasks:      t.totalTasks,
		CompletedTasks:  t.completedTasks,
		FailedTasks:     t.failedTasks,
		InProgressTasks: t.inProgressTasks,
		TotalErrors:     t.totalErrors,
		RecoveredErrors: t.recoveredErrors,
		HealthScore:     t.healthLocked(),
		Events:          events,
	}
}

// record appends an event, trims the log to its cap, refreshes the health
// gauge, and notifies observers. Caller holds the lock.
func (t *Tracker) record(typ EventType, taskID, message string) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TaskID:    taskID,
		Message:   message,
		Timestamp: time.Now(),
	}
	t.events = append(t.events, event)
	if len(t.events) > maxEvents {
		t.events = t.events[len(t.events)-maxEvents:]
	}

	metrics.HealthScore.Set(t.healthLocked())

	snap := t.snapshotLocked()
	for _, obs := range t.observers {
		obs(event, snap)
	}
}
