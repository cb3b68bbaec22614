package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/autodev/internal/core/domain"
)

func sampleTask() *domain.Task {
	return &domain.Task{
		ID:          "implement-api",
		Title:       "Implement api",
		Description: "Implement core logic for api",
		ServiceName: "api",
		Kind:        domain.TaskKindImplement,
	}
}

func chatServer(t *testing.T, reply string, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestExecute(t *testing.T) {
	srv := chatServer(t, "## filename: api/main.py\nprint('ok')", "Bearer sk-test")
	defer srv.Close()

	c, err := NewClient(Config{Provider: "openai", Model: "gpt-4-turbo", BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := c.Execute(context.Background(), sampleTask(), "previous failures: none")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "filename: api/main.py") {
		t.Errorf("unexpected result %q", result)
	}
	if IsFailure(result) {
		t.Error("successful result misread as failure")
	}
}

func TestExecute_TransportErrorIsGoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Provider: "openai", Model: "gpt-4-turbo", BaseURL: srv.URL})
	if _, err := c.Execute(context.Background(), sampleTask(), ""); err == nil {
		t.Fatal("auth failure must surface as a Go error, not a marked response")
	}
}

func TestExecute_CachedResponseSkipsHTTP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "generated code"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		Provider:    "openai",
		Model:       "gpt-4-turbo",
		BaseURL:     srv.URL,
		EnableCache: true,
		CacheDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	task := sampleTask()
	if _, err := c.Execute(context.Background(), task, "ctx"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.Execute(context.Background(), task, "ctx"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}

	// A different prompt misses the cache.
	if _, err := c.Execute(context.Background(), task, "other context"); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected cache miss on new prompt, calls = %d", calls)
	}
}

func TestApplyFix_NotCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "fixed code"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		Provider:    "openai",
		Model:       "gpt-4-turbo",
		BaseURL:     srv.URL,
		EnableCache: true,
		CacheDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.ApplyFix(context.Background(), sampleTask(), "build failed"); err != nil {
			t.Fatalf("ApplyFix: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("fix responses must not be cached, calls = %d", calls)
	}
}

func TestMarker(t *testing.T) {
	if !IsFailure("Error: rate limit exceeded") {
		t.Error("marked response not detected")
	}
	if !IsFailure("  Error: with leading space") {
		t.Error("marker detection should trim whitespace")
	}
	if IsFailure("the call returned Error: 429 mid-sentence") {
		t.Error("marker must be leading, not mid-text")
	}
	if IsFailure("## filename: main.py\nerrors = []") {
		t.Error("ordinary code misread as failure")
	}
	if got := FailureReason("Error: boom"); got != "boom" {
		t.Errorf("FailureReason = %q", got)
	}
	if got := Failure("boom"); got != "Error: boom" {
		t.Errorf("Failure = %q", got)
	}
}
