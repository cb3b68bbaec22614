package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyFiles_FilenameComment(t *testing.T) {
	root := t.TempDir()
	response := "Here is the implementation:\n\n" +
		"```python\n## filename: src/api/main.py\nprint('hello')\n```\n"

	if written := applyFiles(root, response); written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}
	data, err := os.ReadFile(filepath.Join(root, "src", "api", "main.py"))
	if err != nil {
		t.Fatalf("read generated file: %v", err)
	}
	if !strings.Contains(string(data), "print('hello')") {
		t.Errorf("file content = %q", data)
	}
}

func TestApplyFiles_PrecedingTextFallback(t *testing.T) {
	root := t.TempDir()
	response := "Create the following file.\n\n**src/app.py**\n" +
		"```python\nimport os\n```\n"

	if written := applyFiles(root, response); written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}
	if _, err := os.Stat(filepath.Join(root, "src", "app.py")); err != nil {
		t.Errorf("expected src/app.py: %v", err)
	}
}

func TestApplyFiles_Dockerfile(t *testing.T) {
	root := t.TempDir()
	response := "```dockerfile\n# filename: Dockerfile.api\nFROM python:3.12\n```\n"

	if written := applyFiles(root, response); written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}
	if _, err := os.Stat(filepath.Join(root, "Dockerfile.api")); err != nil {
		t.Errorf("expected Dockerfile.api: %v", err)
	}
}

func TestApplyFiles_UnnamedBlockSkipped(t *testing.T) {
	root := t.TempDir()
	response := "Run this:\n```\nmake test\n```\n"

	if written := applyFiles(root, response); written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}

func TestApplyFiles_MultipleBlocks(t *testing.T) {
	root := t.TempDir()
	response := "```python\n## filename: a.py\npass\n```\n" +
		"some prose\n" +
		"```python\n## filename: b.py\npass\n```\n"

	if written := applyFiles(root, response); written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}
}

func TestWriteFile_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	if err := writeFile(root, "../outside.py", "x"); err == nil {
		t.Fatal("expected error for path escaping root")
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.py")); statErr == nil {
		t.Error("file written outside project root")
	}
}
