package control

import (
	"fmt"
	"strings"

	"github.com/vietddude/autodev/internal/core/domain"
	"github.com/vietddude/autodev/internal/tasking/recovery"
)

// Report is the end-of-run summary.
type Report struct {
	RunID       string
	Verdict     domain.RunVerdict
	HealthScore float64
	Completed   int
	FailedTasks []FailedTask
}

// FailedTask describes one task that exhausted its retries.
type FailedTask struct {
	TaskID      string
	Title       string
	ServiceName string
	Reason      string
	TopCategory domain.ErrorCategory
	Strategies  []recovery.Strategy
	Escalated   bool
}

func (s *Supervisor) buildReport(verdict domain.RunVerdict, score float64) *Report {
	report := &Report{
		RunID:       s.runID,
		Verdict:     verdict,
		HealthScore: score,
	}

	for _, task := range s.tasks {
		switch task.Status {
		case domain.TaskStatusCompleted:
			report.Completed++
		case domain.TaskStatusFailed:
			outcome := s.outcome(task)
			report.FailedTasks = append(report.FailedTasks, FailedTask{
				TaskID:      task.ID,
				Title:       task.Title,
				ServiceName: task.ServiceName,
				Reason:      outcome.reason,
				TopCategory: topCategory(outcome.categories),
				Strategies:  outcome.strategies,
				Escalated:   outcome.escalated,
			})
		}
	}
	return report
}

func topCategory(counts map[domain.ErrorCategory]int) domain.ErrorCategory {
	top := domain.CategoryUnknown
	best := 0
	for category, count := range counts {
		if count > best {
			top, best = category, count
		}
	}
	return top
}

// Summary renders the human-readable end-of-run report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished: %s (health %.2f)\n", r.RunID, r.Verdict, r.HealthScore)
	fmt.Fprintf(&b, "Completed tasks: %d, failed tasks: %d\n", r.Completed, len(r.FailedTasks))

	for _, ft := range r.FailedTasks {
		fmt.Fprintf(&b, "\nFAILED %s (%s)\n", ft.TaskID, ft.ServiceName)
		fmt.Fprintf(&b, "  reason: %s\n", ft.Reason)
		fmt.Fprintf(&b, "  dominant category: %s\n", ft.TopCategory)
		if len(ft.Strategies) > 0 {
			parts := make([]string, len(ft.Strategies))
			for i, s := range ft.Strategies {
				parts[i] = string(s)
			}
			fmt.Fprintf(&b, "  strategies tried: %s\n", strings.Join(parts, ", "))
		}
		if ft.Escalated {
			b.WriteString("  all automated recovery exhausted: manual intervention required\n")
		}
	}
	return b.String()
}
