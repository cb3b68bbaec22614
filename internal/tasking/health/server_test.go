package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/autodev/internal/tasking/progress"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{1.0, StatusHealthy},
		{0.7, StatusHealthy},
		{0.69, StatusDegraded},
		{0.4, StatusDegraded},
		{0.39, StatusCritical},
		{0, StatusCritical},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.score); got != tt.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestHandleHealth(t *testing.T) {
	tracker := progress.NewTracker()
	tracker.SetTotalTasks(2)
	tracker.TaskStarted("t0")
	tracker.TaskCompleted("t0")
	tracker.TaskStarted("t1")
	tracker.TaskCompleted("t1")

	s := NewServer(tracker, 0)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != string(StatusHealthy) {
		t.Errorf("verdict = %v", body["status"])
	}
}

func TestHandleHealth_CriticalIs503(t *testing.T) {
	tracker := progress.NewTracker()

	s := NewServer(tracker, 0)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("critical run should return 503, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	tracker := progress.NewTracker()
	tracker.SetTotalTasks(1)
	tracker.TaskStarted("t0")

	s := NewServer(tracker, 0)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var snap progress.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.InProgressTasks != 1 || snap.TotalTasks != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Events) != 1 {
		t.Errorf("expected 1 event, got %d", len(snap.Events))
	}
}
