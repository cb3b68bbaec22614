package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/autodev/internal/core/domain"
)

const systemPrompt = "You are an autonomous software engineer. You write production-ready code. " +
	"Output code in markdown code blocks. IMPORTANT: the first line of every code block MUST be a " +
	"comment containing the filename, e.g. `## filename: src/main.py` or `# filename: Dockerfile`. " +
	"Write the full content of each file."

const fixSystemPrompt = "You are an autonomous software engineer. Fix the bugs based on the error " +
	"logs provided. Output full file contents in markdown code blocks. IMPORTANT: the first line of " +
	"every code block MUST be a comment containing the filename, e.g. `## filename: src/main.py`."

// Client is an OpenAI-compatible chat-completions client. Transport and auth
// faults surface as Go errors; agent-level failures come back as responses
// carrying the failure marker.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *fileCache
}

func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 5 * time.Minute},
	}
	if cfg.EnableCache {
		cache, err := newFileCache(cfg.CacheDir, cfg.Provider, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Execute asks the agent to implement a task. The prompt carries the task
// description, a service type hint, and whatever context the caller supplies
// (typically a digest of recent failures).
func (c *Client) Execute(ctx context.Context, task *domain.Task, taskContext string) (string, error) {
	prompt := buildTaskPrompt(task, taskContext)

	if c.cache != nil {
		if cached, ok := c.cache.get(cacheKey(task.ID, prompt)); ok {
			slog.Debug("agent cache hit", "task", task.ID)
			c.applyResult(task, cached)
			return cached, nil
		}
	}

	result, err := c.chat(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}

	if !IsFailure(result) {
		if c.cache != nil {
			c.cache.put(cacheKey(task.ID, prompt), result)
		}
		c.applyResult(task, result)
	}
	return result, nil
}

func (c *Client) applyResult(task *domain.Task, result string) {
	if c.cfg.Root == "" {
		return
	}
	written := applyFiles(c.cfg.Root, result)
	slog.Info("applied agent output", "task", task.ID, "files", written)
}

// ApplyFix asks the agent to repair a previous attempt given diagnostics.
// Fix responses are never cached.
func (c *Client) ApplyFix(ctx context.Context, task *domain.Task, diagnostics string) (string, error) {
	prompt := fmt.Sprintf(
		"Task: %s\n%s\n\nThe previous implementation failed. Error logs:\n%s\n\nFix the issues and output the corrected files.",
		task.Title, task.Description, diagnostics)

	result, err := c.chat(ctx, fixSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	if !IsFailure(result) {
		c.applyResult(task, result)
	}
	return result, nil
}

func buildTaskPrompt(task *domain.Task, taskContext string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Task: %s\nService: %s\nDescription: %s\n", task.Title, task.ServiceName, task.Description)
	if taskContext != "" {
		fmt.Fprintf(&buf, "\nContext:\n%s\n", taskContext)
	}
	buf.WriteString("\nPlease implement the necessary code for this task.")
	return buf.String()
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.baseURL() + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s api call failed: %w", c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s api returned %d: %s", c.cfg.Provider, resp.StatusCode, truncateBody(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s api error: %s", c.cfg.Provider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s api returned no choices", c.cfg.Provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	switch c.cfg.Provider {
	case "ollama":
		return "http://localhost:11434/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

func truncateBody(data []byte) string {
	const max = 300
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max])
}
