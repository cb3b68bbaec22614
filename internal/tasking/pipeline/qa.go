package pipeline

import (
	"fmt"
	"strings"

	"github.com/vietddude/autodev/internal/core/domain"
)

// validateThresholds checks a domain-QA result against the declared quality
// thresholds. A missing metric or a violated threshold flips the result to
// failed and appends one structured failure line per metric. Results without
// declared thresholds are never flipped.
func validateThresholds(result *domain.TestResult, thresholds []domain.QualityMetric) {
	if len(thresholds) == 0 {
		return
	}

	var failures []string
	for _, qm := range thresholds {
		value, ok := result.Metrics[qm.Name]
		if !ok {
			failures = append(failures, fmt.Sprintf("metric %q not reported", qm.Name))
			continue
		}
		if !thresholdMet(value, qm.Operator, qm.Threshold) {
			failures = append(failures, fmt.Sprintf(
				"%s = %g, want %s %g", qm.Name, value, qm.Operator, qm.Threshold))
		}
	}

	if len(failures) > 0 {
		result.Passed = false
		msg := strings.Join(failures, "; ")
		if result.ErrorMessage != "" {
			msg = result.ErrorMessage + "; " + msg
		}
		result.ErrorMessage = msg
	}
}

func thresholdMet(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		// Unknown operator counts as a violation rather than a silent pass.
		return false
	}
}
