package domain

import "time"

type StageType string

const (
	StageUnit        StageType = "unit"
	StageIntegration StageType = "integration"
	StageE2E         StageType = "e2e"
	StageDomainQA    StageType = "domain_qa"
)

// TestResult is the outcome of one pipeline stage execution. Immutable once
// produced.
type TestResult struct {
	Stage        StageType          `json:"stage"`
	Passed       bool               `json:"passed"`
	Duration     time.Duration      `json:"duration"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Coverage     *float64           `json:"coverage,omitempty"`
}
