package recovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/autodev/internal/core/domain"
)

// Scope carries the contextual metadata attached to a classified failure.
type Scope struct {
	TaskID      string
	ServiceName string
	Phase       string
	Metadata    map[string]string
}

type categoryRule struct {
	category domain.ErrorCategory
	keywords []string
}

// categoryTable is evaluated top-down; the first rule with a matching keyword
// wins. Overlapping keywords ("timeout" matches both build logs and network
// faults) are resolved by this fixed precedence, which is intentional.
var categoryTable = []categoryRule{
	{domain.CategoryAgentAPI, []string{"api", "openai", "gemini", "grok", "ollama", "provider", "rate limit"}},
	{domain.CategoryBuild, []string{"docker", "container", "compose", "image"}},
	{domain.CategoryVCS, []string{"git", "repository", "commit", "push"}},
	{domain.CategoryCodeGeneration, []string{"syntax", "compile", "import"}},
	{domain.CategoryTestFailure, []string{"test", "assert"}},
	{domain.CategoryConfiguration, []string{"config", "key", "missing"}},
	{domain.CategoryNetwork, []string{"network", "connection", "timeout"}},
}

type severityRule struct {
	severity domain.ErrorSeverity
	keywords []string
}

// severityTable is independent of the category decision.
var severityTable = []severityRule{
	{domain.SeverityCritical, []string{"panic", "fatal", "interrupt", "sigterm", "sigkill"}},
	{domain.SeverityHigh, []string{"docker", "api", "connection", "build"}},
	{domain.SeverityMedium, []string{"value", "type", "attribute", "invalid", "parse"}},
}

// Classify maps a raised error plus scope metadata to a structured
// ErrorContext. Pure: it never retries or recovers anything itself.
func Classify(err error, scope Scope) domain.ErrorContext {
	errType := fmt.Sprintf("%T", err)
	message := err.Error()
	haystack := strings.ToLower(errType + " " + message)

	return domain.ErrorContext{
		TaskID:      scope.TaskID,
		ServiceName: scope.ServiceName,
		Phase:       scope.Phase,
		ErrorType:   errType,
		Message:     message,
		Category:    categorize(haystack),
		Severity:    severity(haystack),
		Timestamp:   time.Now(),
		Metadata:    scope.Metadata,
	}
}

// ClassifyMessage classifies a failure signaled as text rather than as a Go
// error (the agent's sentinel-prefixed results).
func ClassifyMessage(message string, scope Scope) domain.ErrorContext {
	haystack := strings.ToLower(message)
	return domain.ErrorContext{
		TaskID:      scope.TaskID,
		ServiceName: scope.ServiceName,
		Phase:       scope.Phase,
		ErrorType:   "agent_result",
		Message:     message,
		Category:    categorize(haystack),
		Severity:    severity(haystack),
		Timestamp:   time.Now(),
		Metadata:    scope.Metadata,
	}
}

func categorize(haystack string) domain.ErrorCategory {
	for _, rule := range categoryTable {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.category
			}
		}
	}
	return domain.CategoryUnknown
}

func severity(haystack string) domain.ErrorSeverity {
	for _, rule := range severityTable {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.severity
			}
		}
	}
	return domain.SeverityLow
}
