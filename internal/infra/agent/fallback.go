package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/autodev/internal/core/domain"
)

// TaskExecutor is the execution surface the supervisor drives.
type TaskExecutor interface {
	Execute(ctx context.Context, task *domain.Task, taskContext string) (string, error)
	ApplyFix(ctx context.Context, task *domain.Task, diagnostics string) (string, error)
}

const (
	defaultMaxProbes    = 3
	defaultProbeTimeout = 30 * time.Second
)

// FallbackExecutor wraps a primary executor with a bounded concurrent probe of
// alternative providers. The fan-out triggers only on invocation errors, never
// on in-band failure responses; the first successful probe wins and the rest
// are cancelled.
type FallbackExecutor struct {
	primary      TaskExecutor
	probes       []TaskExecutor
	maxProbes    int
	probeTimeout time.Duration
}

// NewFallbackExecutor builds the production fan-out from config. Fallback
// entries matching the primary provider are skipped.
func NewFallbackExecutor(cfg Config) (*FallbackExecutor, error) {
	primary, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	var probes []TaskExecutor
	for _, fb := range cfg.Fallbacks {
		if fb.Provider == cfg.Provider {
			continue
		}
		probe, err := NewClient(Config{
			Provider: fb.Provider,
			Model:    fb.Model,
			BaseURL:  fb.BaseURL,
			APIKey:   fb.APIKey,
		})
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}

	return &FallbackExecutor{
		primary:      primary,
		probes:       probes,
		maxProbes:    cfg.MaxProbes,
		probeTimeout: cfg.ProbeTimeout,
	}, nil
}

// NewFallbackExecutorWith wires explicit executors; used by tests and custom
// assemblies.
func NewFallbackExecutorWith(primary TaskExecutor, probes []TaskExecutor, maxProbes int, probeTimeout time.Duration) *FallbackExecutor {
	return &FallbackExecutor{
		primary:      primary,
		probes:       probes,
		maxProbes:    maxProbes,
		probeTimeout: probeTimeout,
	}
}

func (f *FallbackExecutor) Execute(ctx context.Context, task *domain.Task, taskContext string) (string, error) {
	result, err := f.primary.Execute(ctx, task, taskContext)
	if err == nil {
		return result, nil
	}
	if len(f.probes) == 0 {
		return "", err
	}

	slog.Warn("primary agent failed, probing fallback providers", "task", task.ID, "error", err)
	result, probeErr := f.fanOut(ctx, task, taskContext)
	if probeErr != nil {
		return "", fmt.Errorf("%w (all fallback providers failed)", err)
	}
	return result, nil
}

// ApplyFix always goes to the primary: fix prompts reference the primary's
// previous output and rarely transfer across models.
func (f *FallbackExecutor) ApplyFix(ctx context.Context, task *domain.Task, diagnostics string) (string, error) {
	return f.primary.ApplyFix(ctx, task, diagnostics)
}

func (f *FallbackExecutor) fanOut(parent context.Context, task *domain.Task, taskContext string) (string, error) {
	maxProbes := f.maxProbes
	if maxProbes <= 0 {
		maxProbes = defaultMaxProbes
	}
	wall := f.probeTimeout
	if wall <= 0 {
		wall = defaultProbeTimeout
	}

	probes := f.probes
	if len(probes) > maxProbes {
		probes = probes[:maxProbes]
	}

	ctx, cancel := context.WithTimeout(parent, wall)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	results := make(chan outcome, len(probes))

	for _, probe := range probes {
		probe := probe
		go func() {
			result, err := probe.Execute(ctx, task, taskContext)
			if err == nil && IsFailure(result) {
				err = fmt.Errorf("probe reported failure: %s", FailureReason(result))
			}
			results <- outcome{result: result, err: err}
		}()
	}

	var lastErr error
	for i := 0; i < len(probes); i++ {
		select {
		case out := <-results:
			if out.err == nil {
				cancel()
				return out.result, nil
			}
			lastErr = out.err
		case <-ctx.Done():
			return "", fmt.Errorf("fallback probe window expired: %w", ctx.Err())
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no fallback providers configured")
	}
	return "", lastErr
}
