package agent

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// cacheKey derives the lookup key for one task/prompt pair.
func cacheKey(taskID, prompt string) string {
	sum := md5.Sum([]byte(taskID + ":" + prompt))
	return hex.EncodeToString(sum[:])
}

// fileCache persists agent responses per provider/model as a single JSON file.
// A lost or corrupt cache file is treated as empty, never as an error.
type fileCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

func newFileCache(dir, provider, model string) (*fileCache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".autodev", "cache")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &fileCache{
		path:    filepath.Join(dir, fmt.Sprintf("%s_%s.json", provider, model)),
		entries: make(map[string]string),
	}
	if data, err := os.ReadFile(c.path); err == nil {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			slog.Warn("discarding corrupt agent cache", "path", c.path, "error", err)
			c.entries = make(map[string]string)
		}
	}
	return c, nil
}

func (c *fileCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fileCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value

	data, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		slog.Warn("failed to persist agent cache", "path", c.path, "error", err)
	}
}
