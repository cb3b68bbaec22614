package agent

import "time"

// Config holds the code-generation agent settings. Root is the project
// directory generated files land in; it is set by the assembly, not by YAML.
type Config struct {
	Root         string           `yaml:"-"`
	Provider     string           `yaml:"provider"`
	Model        string           `yaml:"model"`
	BaseURL      string           `yaml:"base_url"`
	APIKey       string           `yaml:"api_key"`
	EnableCache  bool             `yaml:"enable_cache"`
	CacheDir     string           `yaml:"cache_dir"`
	Fallbacks    []FallbackConfig `yaml:"fallbacks"`
	ProbeTimeout time.Duration    `yaml:"probe_timeout"`
	MaxProbes    int              `yaml:"max_probes"`
}

// FallbackConfig describes one alternative provider probed when the primary
// fails outright.
type FallbackConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}
