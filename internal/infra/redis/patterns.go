package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailurePattern accumulates what is known about a recurring failure across
// runs: how often it fired, the recent error messages, and which strategies
// eventually recovered it.
type FailurePattern struct {
	Key          string    `json:"key"` // service:title
	Count        int       `json:"count"`
	RecentErrors []string  `json:"recent_errors"`
	Strategies   []string  `json:"strategies"` // strategies that recovered it
	LastSeen     time.Time `json:"last_seen"`
}

const (
	patternIndexKey  = "failure_patterns:index"
	patternKeyPrefix = "failure_patterns:"
	maxRecentErrors  = 5
)

func patternKey(key string) string {
	return patternKeyPrefix + key
}

// RecordFailure bumps the pattern for a service:title key and appends the
// error message, keeping the most recent few. The index sorted set orders
// patterns by occurrence count.
func (c *Client) RecordFailure(ctx context.Context, key, message string) error {
	pattern, err := c.getPattern(ctx, key)
	if err != nil {
		return err
	}
	if pattern == nil {
		pattern = &FailurePattern{Key: key}
	}

	pattern.Count++
	pattern.LastSeen = time.Now()
	pattern.RecentErrors = append(pattern.RecentErrors, message)
	if len(pattern.RecentErrors) > maxRecentErrors {
		pattern.RecentErrors = pattern.RecentErrors[len(pattern.RecentErrors)-maxRecentErrors:]
	}

	return c.savePattern(ctx, pattern)
}

// RecordRecovery notes a strategy that recovered the pattern, once.
func (c *Client) RecordRecovery(ctx context.Context, key, strategy string) error {
	pattern, err := c.getPattern(ctx, key)
	if err != nil {
		return err
	}
	if pattern == nil {
		return nil
	}

	for _, s := range pattern.Strategies {
		if s == strategy {
			return nil
		}
	}
	pattern.Strategies = append(pattern.Strategies, strategy)
	return c.savePattern(ctx, pattern)
}

// GetPattern fetches one pattern, nil when unseen.
func (c *Client) GetPattern(ctx context.Context, key string) (*FailurePattern, error) {
	return c.getPattern(ctx, key)
}

// TopPatterns returns the most frequent patterns, highest count first.
func (c *Client) TopPatterns(ctx context.Context, limit int) ([]*FailurePattern, error) {
	keys, err := c.rdb.ZRevRange(ctx, patternIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	patterns := make([]*FailurePattern, 0, len(keys))
	for _, key := range keys {
		pattern, err := c.getPattern(ctx, key)
		if err != nil {
			return nil, err
		}
		if pattern != nil {
			patterns = append(patterns, pattern)
		}
	}
	return patterns, nil
}

func (c *Client) getPattern(ctx context.Context, key string) (*FailurePattern, error) {
	data, err := c.rdb.Get(ctx, patternKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var pattern FailurePattern
	if err := json.Unmarshal([]byte(data), &pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern payload: %w", err)
	}
	return &pattern, nil
}

func (c *Client) savePattern(ctx context.Context, pattern *FailurePattern) error {
	data, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("failed to encode pattern: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, patternKey(pattern.Key), data, 0)
	pipe.ZAdd(ctx, patternIndexKey, redis.Z{
		Score:  float64(pattern.Count),
		Member: pattern.Key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}
