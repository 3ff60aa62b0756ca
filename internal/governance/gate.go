// Package governance applies the rule-based hard-threshold check and the HITL
// escalation decision at the end of each step.
package governance

import (
	"context"
	"fmt"

	"github.com/cascadeai/orchestrator/internal/domain"
	"github.com/cascadeai/orchestrator/policy"
)

// Limits are the fixed thresholds the policy compares run metrics against.
type Limits struct {
	MaxBugRate         float64
	MaxComplexity      float64
	MinMaintainability float64
}

// DefaultLimits returns the built-in governance thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxBugRate:         0.25,
		MaxComplexity:      10,
		MinMaintainability: 0.5,
	}
}

// Metrics are the computed run metrics the gate checks. Values missing from an
// assessment are zero, which the thresholds treat as harmless.
type Metrics struct {
	BugRate         float64
	Complexity      float64
	Maintainability float64
}

// MetricsFrom picks the gate's inputs out of an assessment map. A missing
// maintainability reading defaults to 1 so that only an explicit low reading
// can deny on it.
func MetricsFrom(assessed map[string]float64) Metrics {
	m := Metrics{Maintainability: 1}
	if v, ok := assessed["bug_rate"]; ok {
		m.BugRate = v
	}
	if v, ok := assessed["complexity"]; ok {
		m.Complexity = v
	}
	if v, ok := assessed["maintainability"]; ok {
		m.Maintainability = v
	}
	return m
}

// Gate evaluates the governance policy. Check is a pure, deterministic
// function of its metrics input; it is never model-driven.
type Gate struct {
	engine *policy.Engine
	limits Limits
}

// NewGate prepares the policy engine once at startup.
func NewGate(ctx context.Context, limits Limits, policySource string) (*Gate, error) {
	if policySource == "" {
		policySource = policy.DefaultPolicy
	}
	engine, err := policy.NewEngine(ctx, policySource)
	if err != nil {
		return nil, fmt.Errorf("prepare governance policy: %w", err)
	}
	return &Gate{engine: engine, limits: limits}, nil
}

// Check compares metrics against the fixed thresholds.
func (g *Gate) Check(ctx context.Context, m Metrics) (*policy.Decision, error) {
	input := map[string]interface{}{
		"metrics": map[string]interface{}{
			"bug_rate":        m.BugRate,
			"complexity":      m.Complexity,
			"maintainability": m.Maintainability,
		},
		"limits": map[string]interface{}{
			"max_bug_rate":        g.limits.MaxBugRate,
			"max_complexity":      g.limits.MaxComplexity,
			"min_maintainability": g.limits.MinMaintainability,
		},
	}
	decision, err := g.engine.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("governance evaluation: %w", err)
	}
	return decision, nil
}

// HITLCheck reports whether the pipeline may proceed without a human hold.
// Only low risk proceeds immediately; any other level requires an external
// hold to be resolved, which the orchestrator models as a durable pause.
func HITLCheck(riskLevel string) bool {
	return riskLevel == domain.RiskLow
}
