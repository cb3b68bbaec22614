package config

import (
	"time"

	"github.com/vietddude/autodev/internal/infra/agent"
	redisclient "github.com/vietddude/autodev/internal/infra/redis"
	"github.com/vietddude/autodev/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Agent      agent.Config       `yaml:"agent"`
	Supervisor SupervisorConfig   `yaml:"supervisor"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
}

// ServerConfig holds status server settings. Port 0 disables the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SupervisorConfig holds the task loop settings.
type SupervisorConfig struct {
	ProjectRoot      string        `yaml:"project_root"`
	MaxRetries       int           `yaml:"max_retries"`
	FailureWindow    int           `yaml:"failure_window"` // prior failures included in retry prompts
	BackoffCap       time.Duration `yaml:"backoff_cap"`
	SkipVCS          bool          `yaml:"skip_vcs"`
	SkipBuild        bool          `yaml:"skip_build"`
	AdvancedRecovery bool          `yaml:"advanced_recovery"`
}
