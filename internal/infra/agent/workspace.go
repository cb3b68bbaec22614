package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```(\\w*)\n(.*?)```")
	filenameRe  = regexp.MustCompile(`(?i)filename:\s*([a-zA-Z0-9_./-]+)`)
	bareFileRe  = regexp.MustCompile(`([a-zA-Z0-9_./-]+\.[a-zA-Z0-9]+|Dockerfile(?:\.[a-zA-Z0-9_-]+)?)`)
)

// applyFiles parses markdown code blocks from an agent response and writes
// each to the project root. The filename comes from a `filename:` comment on
// the block's first line, falling back to a file path in the text right
// before the block. Blocks without a resolvable filename are skipped.
func applyFiles(root, content string) int {
	written := 0
	lastEnd := 0

	for _, loc := range codeBlockRe.FindAllStringSubmatchIndex(content, -1) {
		code := content[loc[4]:loc[5]]

		filename := blockFilename(code)
		if filename == "" {
			filename = precedingFilename(content[lastEnd:loc[0]])
		}
		lastEnd = loc[1]

		if filename == "" {
			slog.Debug("code block without filename skipped")
			continue
		}
		if err := writeFile(root, filename, strings.TrimSpace(code)); err != nil {
			slog.Warn("failed to write generated file", "file", filename, "error", err)
			continue
		}
		written++
	}
	return written
}

func blockFilename(code string) string {
	trimmed := strings.TrimSpace(code)
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	if m := filenameRe.FindStringSubmatch(firstLine); m != nil {
		return m[1]
	}
	return ""
}

func precedingFilename(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return ""
	}
	if m := bareFileRe.FindStringSubmatch(lines[len(lines)-1]); m != nil {
		return m[1]
	}
	return ""
}

func writeFile(root, filename, content string) error {
	target := filename
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	// Never write outside the project root.
	cleanRoot := filepath.Clean(root) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(target)+string(filepath.Separator), cleanRoot) {
		return fmt.Errorf("path escapes project root: %s", filename)
	}

	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(target, []byte(content), 0o644)
}
