package domain

import "time"

type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

type ErrorCategory string

const (
	CategoryAgentAPI       ErrorCategory = "agent_api"
	CategoryBuild          ErrorCategory = "build"
	CategoryVCS            ErrorCategory = "vcs"
	CategoryCodeGeneration ErrorCategory = "code_generation"
	CategoryTestFailure    ErrorCategory = "test_failure"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryNetwork        ErrorCategory = "network"
	CategoryUnknown        ErrorCategory = "unknown"
)

// ErrorContext captures one classified failure. Appended to the run's
// append-only error history; RecoveryAttempts > 0 records that a recovery was
// attempted for this error, not that it succeeded.
type ErrorContext struct {
	TaskID           string            `json:"task_id"`
	ServiceName      string            `json:"service_name"`
	Phase            string            `json:"phase"`
	ErrorType        string            `json:"error_type"`
	Message          string            `json:"message"`
	Severity         ErrorSeverity     `json:"severity"`
	Category         ErrorCategory     `json:"category"`
	Timestamp        time.Time         `json:"timestamp"`
	RecoveryAttempts int               `json:"recovery_attempts"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
