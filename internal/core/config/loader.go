package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Seeded before unmarshal so an explicit `advanced_recovery: false` in the
	// document still disables it.
	cfg.Supervisor.AdvancedRecovery = true

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Supervisor.ProjectRoot == "" {
		cfg.Supervisor.ProjectRoot = "."
	}
	if cfg.Supervisor.MaxRetries == 0 {
		cfg.Supervisor.MaxRetries = 5
	}
	if cfg.Supervisor.FailureWindow == 0 {
		cfg.Supervisor.FailureWindow = 3
	}
	if cfg.Supervisor.BackoffCap == 0 {
		cfg.Supervisor.BackoffCap = 30 * time.Second
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = "openai"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "gpt-4-turbo"
	}
	if cfg.Agent.ProbeTimeout == 0 {
		cfg.Agent.ProbeTimeout = 30 * time.Second
	}
	if cfg.Agent.MaxProbes == 0 {
		cfg.Agent.MaxProbes = 3
	}
}
