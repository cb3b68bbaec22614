package pipeline

import (
	"testing"

	"github.com/vietddude/autodev/internal/core/domain"
)

func TestParseMetrics_Unit(t *testing.T) {
	output := `============ test session starts ============
collected 12 items

10 passed, 2 failed in 3.41s`

	metrics := parseMetrics(domain.StageUnit, output, backendSpec())

	if metrics["test_count"] != 12 {
		t.Errorf("test_count = %v", metrics["test_count"])
	}
	if metrics["passed"] != 10 || metrics["failed"] != 2 {
		t.Errorf("passed/failed = %v/%v", metrics["passed"], metrics["failed"])
	}
	if got := metrics["pass_rate"]; got < 0.83 || got > 0.84 {
		t.Errorf("pass_rate = %v", got)
	}
}

func TestParseMetrics_IntegrationLatency(t *testing.T) {
	output := "GET /items 120ms\nGET /orders 80.5ms\n2 passed"

	metrics := parseMetrics(domain.StageIntegration, output, backendSpec())

	if got := metrics["api_response_time"]; got < 100.2 || got > 100.3 {
		t.Errorf("api_response_time = %v, want mean 100.25", got)
	}
}

func TestParseMetrics_DomainQALastValueWins(t *testing.T) {
	output := "epoch 1 accuracy: 0.71\nepoch 2 accuracy: 0.88\nfinal accuracy: 0.93\nlatency: 45ms"

	metrics := parseMetrics(domain.StageDomainQA, output, mlSpec())

	if metrics["accuracy"] != 0.93 {
		t.Errorf("accuracy = %v, want last reported 0.93", metrics["accuracy"])
	}
	if metrics["latency"] != 45 {
		t.Errorf("latency = %v", metrics["latency"])
	}
}

func TestParseCoverage(t *testing.T) {
	cov, ok := parseCoverage("TOTAL 420 38 coverage: 91%")
	if !ok || cov != 91 {
		t.Errorf("coverage = %v ok=%v, want 91", cov, ok)
	}

	if _, ok := parseCoverage("4 passed in 1.2s"); ok {
		t.Error("output without coverage report should parse nothing")
	}
}

func TestThresholdMet(t *testing.T) {
	tests := []struct {
		value     float64
		op        string
		threshold float64
		want      bool
	}{
		{0.9, ">=", 0.9, true},
		{0.89, ">=", 0.9, false},
		{0.91, ">", 0.9, true},
		{0.9, ">", 0.9, false},
		{100, "<=", 100, true},
		{101, "<=", 100, false},
		{99, "<", 100, true},
		{0.5, "~=", 0.5, false}, // unknown operator is a violation
	}
	for _, tt := range tests {
		if got := thresholdMet(tt.value, tt.op, tt.threshold); got != tt.want {
			t.Errorf("thresholdMet(%v %s %v) = %v, want %v", tt.value, tt.op, tt.threshold, got, tt.want)
		}
	}
}
