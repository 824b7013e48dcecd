package orchestrator

import (
	"os"
	"strconv"
)

// Tier is one of the four context-window bands that govern how ambitious
// an agentic session is allowed to be.
type Tier string

const (
	TierTerse       Tier = "terse"
	TierBalanced    Tier = "balanced"
	TierDetailed    Tier = "detailed"
	TierExploratory Tier = "exploratory"
)

// TierLimits bounds one tier's behaviour.
type TierLimits struct {
	MaxToolCalls int
	MinDepth     int
	MaxDepth     int
}

var tierLimits = map[Tier]TierLimits{
	TierTerse:       {MaxToolCalls: 5, MinDepth: 1, MaxDepth: 2},
	TierBalanced:    {MaxToolCalls: 10, MinDepth: 2, MaxDepth: 3},
	TierDetailed:    {MaxToolCalls: 15, MinDepth: 3, MaxDepth: 5},
	TierExploratory: {MaxToolCalls: 20, MinDepth: 3, MaxDepth: 5},
}

// LimitsFor returns the step/depth caps for a tier, defaulting to Balanced
// for an unrecognised value.
func LimitsFor(tier Tier) TierLimits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierBalanced]
}

// envContextWindowVar is checked when a caller does not supply an explicit
// context window size.
const envContextWindowVar = "CODEGRAPH_CONTEXT_WINDOW"

// DetectTier resolves a tier from an explicit context-window token count,
// falling back to the CODEGRAPH_CONTEXT_WINDOW environment variable, and
// finally to Balanced when neither is set.
func DetectTier(contextWindowTokens int) Tier {
	if contextWindowTokens <= 0 {
		if v := os.Getenv(envContextWindowVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				contextWindowTokens = n
			}
		}
	}

	switch {
	case contextWindowTokens <= 0:
		return TierBalanced
	case contextWindowTokens < 50_000:
		return TierTerse
	case contextWindowTokens < 200_000:
		return TierBalanced
	case contextWindowTokens < 500_000:
		return TierDetailed
	default:
		return TierExploratory
	}
}
