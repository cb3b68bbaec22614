package recovery

import "github.com/vietddude/autodev/internal/core/domain"

// Strategy names a recovery tactic the supervisor can apply to a failed
// attempt. The selector only decides what to try next; applying a strategy is
// the supervisor's job.
type Strategy string

const (
	// StrategyRetry re-executes with the same input.
	StrategyRetry Strategy = "retry"
	// StrategyEnrichContext asks for a fix with a detailed error digest.
	StrategyEnrichContext Strategy = "enrich-context"
	// StrategyAlternative asks for a completely different approach.
	StrategyAlternative Strategy = "alternative-approach"
	// StrategySimplify asks for a reduced-scope implementation.
	StrategySimplify Strategy = "simplify-scope"
	// StrategyDecompose implements only the core of the task.
	StrategyDecompose Strategy = "decompose-task"
	// StrategyEscalate is terminal: all automated tactics for the category
	// are exhausted and human intervention is required.
	StrategyEscalate Strategy = "escalate"
)

// strategyTable holds the fixed per-category candidate order.
var strategyTable = map[domain.ErrorCategory][]Strategy{
	domain.CategoryAgentAPI:       {StrategyRetry, StrategyAlternative},
	domain.CategoryBuild:          {StrategyEnrichContext, StrategySimplify},
	domain.CategoryCodeGeneration: {StrategyEnrichContext, StrategyAlternative, StrategyDecompose},
	domain.CategoryTestFailure:    {StrategyEnrichContext, StrategySimplify, StrategyAlternative},
	domain.CategoryUnknown:        {StrategyRetry, StrategyEnrichContext},
}

// Select returns the first candidate for the category not present in tried,
// or StrategyEscalate once all candidates are exhausted. Categories without
// their own candidate list fall back to the Unknown list.
func Select(category domain.ErrorCategory, tried map[Strategy]bool) Strategy {
	candidates, ok := strategyTable[category]
	if !ok {
		candidates = strategyTable[domain.CategoryUnknown]
	}
	for _, s := range candidates {
		if !tried[s] {
			return s
		}
	}
	return StrategyEscalate
}
