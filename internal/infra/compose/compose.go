package compose

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/autodev/internal/core/domain"
)

// Manager drives docker compose for the generated project. It captures the
// stderr of the last failed invocation so the supervisor can hand build
// diagnostics to the agent.
type Manager struct {
	root string

	mu        sync.Mutex
	lastError string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Build runs `docker compose build`. On failure the captured output is
// retained and returned via LastError.
func (m *Manager) Build(ctx context.Context) error {
	return m.run(ctx, "build")
}

// Up starts the services detached.
func (m *Manager) Up(ctx context.Context) error {
	return m.run(ctx, "up", "-d")
}

// Down tears the services down. Errors are logged, not returned: teardown is
// best-effort.
func (m *Manager) Down(ctx context.Context) {
	if err := m.run(ctx, "down"); err != nil {
		slog.Warn("compose down failed", "error", err)
	}
}

// LastError returns the diagnostics of the most recent failed invocation.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

func (m *Manager) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	cmd.Dir = m.root

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		m.mu.Lock()
		m.lastError = diag
		m.mu.Unlock()
		return fmt.Errorf("docker compose %s failed: %s", args[0], diag)
	}
	return nil
}

type composeService struct {
	Build struct {
		Context    string `yaml:"context"`
		Dockerfile string `yaml:"dockerfile"`
	} `yaml:"build"`
	Image       string   `yaml:"image"`
	Volumes     []string `yaml:"volumes"`
	Environment []string `yaml:"environment"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

type composeFile struct {
	Version  string                    `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
}

// GenerateFile writes a docker-compose.yml for the project spec, one service
// entry per declared service with depends_on wiring.
func (m *Manager) GenerateFile(spec *domain.ProjectSpec) error {
	doc := composeFile{
		Version:  "3.8",
		Services: make(map[string]composeService, len(spec.Services)),
	}

	for _, svc := range spec.Services {
		entry := composeService{
			Image:       fmt.Sprintf("%s-%s:%s", spec.Name, svc.Name, spec.Version),
			Volumes:     []string{".:/app"},
			Environment: []string{"ENV=test"},
			DependsOn:   svc.Dependencies,
		}
		entry.Build.Context = "."
		entry.Build.Dockerfile = "Dockerfile." + svc.Name
		doc.Services[svc.Name] = entry
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode compose file: %w", err)
	}

	path := filepath.Join(m.root, "docker-compose.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	return nil
}
