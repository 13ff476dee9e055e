package orchestrator

import (
	"time"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/schema"
)

// Policy controls how a single analysis job is executed: per-attempt
// deadline, retry budget for transient failures, and the fixed delay
// between attempts.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// maxAttempts is the retry budget plus the initial attempt.
func (p Policy) maxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// DefaultPolicies returns the built-in per-kind policies.
func DefaultPolicies() map[schema.Kind]Policy {
	return map[schema.Kind]Policy{
		schema.KindTopology:  {Timeout: 5 * time.Minute, MaxRetries: 3, RetryDelay: time.Second},
		schema.KindCausal:    {Timeout: 4 * time.Minute, MaxRetries: 3, RetryDelay: 1500 * time.Millisecond},
		schema.KindConsensus: {Timeout: 3 * time.Minute, MaxRetries: 2, RetryDelay: 2 * time.Second},
	}
}

// PoliciesFromConfig merges configured overrides onto the defaults.
// Zero config values keep the default for that field.
func PoliciesFromConfig(cfg config.AnalysisConfig) map[schema.Kind]Policy {
	policies := DefaultPolicies()
	overlay := func(kind schema.Kind, pc config.PolicyConfig) {
		p := policies[kind]
		if pc.TimeoutSeconds > 0 {
			p.Timeout = time.Duration(pc.TimeoutSeconds) * time.Second
		}
		if pc.MaxRetries > 0 {
			p.MaxRetries = pc.MaxRetries
		}
		if pc.RetryDelayMillis > 0 {
			p.RetryDelay = time.Duration(pc.RetryDelayMillis) * time.Millisecond
		}
		policies[kind] = p
	}
	overlay(schema.KindTopology, cfg.Topology)
	overlay(schema.KindCausal, cfg.Causal)
	overlay(schema.KindConsensus, cfg.Consensus)
	return policies
}
