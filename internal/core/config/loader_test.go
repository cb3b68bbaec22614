package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Supervisor.MaxRetries != 5 {
		t.Errorf("expected default max_retries 5, got %d", cfg.Supervisor.MaxRetries)
	}
	if cfg.Supervisor.FailureWindow != 3 {
		t.Errorf("expected default failure_window 3, got %d", cfg.Supervisor.FailureWindow)
	}
	if cfg.Supervisor.BackoffCap != 30*time.Second {
		t.Errorf("expected default backoff cap 30s, got %v", cfg.Supervisor.BackoffCap)
	}
	if cfg.Supervisor.ProjectRoot != "." {
		t.Errorf("expected default project root '.', got %q", cfg.Supervisor.ProjectRoot)
	}
	if cfg.Agent.Provider != "openai" {
		t.Errorf("expected default provider openai, got %q", cfg.Agent.Provider)
	}
	if cfg.Agent.MaxProbes != 3 {
		t.Errorf("expected default max probes 3, got %d", cfg.Agent.MaxProbes)
	}
	if cfg.Server.Port != 0 {
		t.Errorf("status server should be disabled by default, got port %d", cfg.Server.Port)
	}
	if !cfg.Supervisor.AdvancedRecovery {
		t.Error("expected advanced recovery enabled by default")
	}
}

func TestLoad_AdvancedRecoveryDisabled(t *testing.T) {
	path := writeConfig(t, `
supervisor:
  advanced_recovery: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Supervisor.AdvancedRecovery {
		t.Error("expected advanced_recovery false to be honored")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("AUTODEV_TEST_KEY", "sk-test-123")

	path := writeConfig(t, `
agent:
  provider: openai
  model: gpt-4-turbo
  api_key: ${AUTODEV_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Agent.APIKey != "sk-test-123" {
		t.Errorf("expected expanded API key, got %q", cfg.Agent.APIKey)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
supervisor:
  max_retries: 3
  skip_vcs: true
  advanced_recovery: true
agent:
  provider: ollama
  model: llama3.1
  base_url: http://localhost:11434/v1
  fallbacks:
    - provider: openai
      model: gpt-3.5-turbo
redis:
  url: redis://localhost:6379/0
database:
  url: postgres://localhost/autodev
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Supervisor.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Supervisor.MaxRetries)
	}
	if !cfg.Supervisor.SkipVCS {
		t.Error("expected skip_vcs true")
	}
	if cfg.Agent.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", cfg.Agent.Provider)
	}
	if len(cfg.Agent.Fallbacks) != 1 || cfg.Agent.Fallbacks[0].Provider != "openai" {
		t.Errorf("unexpected fallbacks: %+v", cfg.Agent.Fallbacks)
	}
	if cfg.Redis.URL == "" || cfg.Database.URL == "" {
		t.Error("expected redis and database URLs to be set")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
