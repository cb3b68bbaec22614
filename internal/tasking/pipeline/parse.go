package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vietddude/autodev/internal/core/domain"
)

var (
	collectedRe = regexp.MustCompile(`collected (\d+) items`)
	passedRe    = regexp.MustCompile(`(\d+) passed`)
	failedRe    = regexp.MustCompile(`(\d+) failed`)
	coverageRe  = regexp.MustCompile(`(\d+)%`)
	latencyRe   = regexp.MustCompile(`(\d+\.?\d*)\s*ms`)
)

// parseMetrics extracts stage-specific numeric metrics from test output.
func parseMetrics(stage domain.StageType, output string, svc *domain.ServiceSpec) map[string]float64 {
	metrics := make(map[string]float64)

	switch stage {
	case domain.StageUnit:
		if m := collectedRe.FindStringSubmatch(output); m != nil {
			metrics["test_count"], _ = strconv.ParseFloat(m[1], 64)
		}
		passed := sumMatches(passedRe, output)
		failed := sumMatches(failedRe, output)
		if passed+failed > 0 {
			metrics["passed"] = passed
			metrics["failed"] = failed
			metrics["pass_rate"] = passed / (passed + failed)
		}

	case domain.StageIntegration:
		if mean, ok := meanMatches(latencyRe, output); ok {
			metrics["api_response_time"] = mean
		}

	case domain.StageDomainQA:
		for name, value := range parseDomainMetrics(output, svc) {
			metrics[name] = value
		}
	}

	return metrics
}

// parseDomainMetrics looks for `name: value` style lines for the standard QA
// metric names plus every metric the service declares a threshold for.
func parseDomainMetrics(output string, svc *domain.ServiceSpec) map[string]float64 {
	names := []string{"accuracy", "precision", "recall", "f1_score", "latency"}
	for _, qm := range svc.QualityMetrics {
		names = append(names, qm.Name)
	}

	metrics := make(map[string]float64)
	for _, name := range names {
		if _, seen := metrics[name]; seen {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `[:\s=]+(\d+\.?\d*)`)
		matches := re.FindAllStringSubmatch(output, -1)
		if len(matches) == 0 {
			continue
		}
		// Last match wins: final reported value supersedes progress lines.
		if v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64); err == nil {
			metrics[name] = v
		}
	}
	return metrics
}

// parseCoverage extracts the last percentage in a coverage report.
func parseCoverage(output string) (float64, bool) {
	if !strings.Contains(strings.ToLower(output), "coverage") {
		return 0, false
	}
	matches := coverageRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sumMatches(re *regexp.Regexp, output string) float64 {
	var sum float64
	for _, m := range re.FindAllStringSubmatch(output, -1) {
		v, _ := strconv.ParseFloat(m[1], 64)
		sum += v
	}
	return sum
}

func meanMatches(re *regexp.Regexp, output string) (float64, bool) {
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var sum float64
	for _, m := range matches {
		v, _ := strconv.ParseFloat(m[1], 64)
		sum += v
	}
	return sum / float64(len(matches)), true
}
