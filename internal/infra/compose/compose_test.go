package compose

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/autodev/internal/core/domain"
)

func TestGenerateFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	spec := &domain.ProjectSpec{
		Name:    "shop",
		Version: "0.1.0",
		Services: []domain.ServiceSpec{
			{Name: "api", Type: domain.ServiceTypeBackend},
			{Name: "web", Type: domain.ServiceTypeFrontend, Dependencies: []string{"api"}},
		},
	}

	if err := m.GenerateFile(spec); err != nil {
		t.Fatalf("GenerateFile: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "docker-compose.yml"))
	if err != nil {
		t.Fatalf("read compose file: %v", err)
	}

	var doc composeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse compose file: %v", err)
	}

	if doc.Version != "3.8" {
		t.Errorf("version = %q", doc.Version)
	}
	if len(doc.Services) != 2 {
		t.Fatalf("services = %d", len(doc.Services))
	}

	api := doc.Services["api"]
	if api.Image != "shop-api:0.1.0" {
		t.Errorf("api image = %q", api.Image)
	}
	if api.Build.Dockerfile != "Dockerfile.api" {
		t.Errorf("api dockerfile = %q", api.Build.Dockerfile)
	}

	web := doc.Services["web"]
	if len(web.DependsOn) != 1 || web.DependsOn[0] != "api" {
		t.Errorf("web depends_on = %v", web.DependsOn)
	}
	if len(api.DependsOn) != 0 {
		t.Errorf("api should have no depends_on, got %v", api.DependsOn)
	}
}
