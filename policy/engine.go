// Package policy evaluates the governance rules for completed pipeline steps.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision is the governance policy's verdict over a set of run metrics.
type Decision struct {
	Allowed bool
	Reasons []string
	Risk    string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.governance.decision"),
		rego.Module("governance.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the policy over input. Input must carry "metrics" and "limits"
// maps; evaluation is a pure function of them. The decision defaults to denial
// when the policy yields nothing usable (fails closed).
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (*Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return &Decision{Allowed: false, Risk: "high", Reasons: []string{"policy yielded no decision"}}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return &Decision{Allowed: false, Risk: "high", Reasons: []string{"unexpected decision shape"}}, nil
	}

	decision := &Decision{}
	if allowed, ok := obj["allowed"].(bool); ok {
		decision.Allowed = allowed
	}
	if risk, ok := obj["risk"].(string); ok {
		decision.Risk = risk
	}
	if reasons, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				decision.Reasons = append(decision.Reasons, s)
			}
		}
	}
	return decision, nil
}

// DefaultPolicy is the default governance policy content. Hard thresholds only;
// the limits arrive as input so operators can tune them without editing rego.
const DefaultPolicy = `
package governance

import rego.v1

deny contains msg if {
	input.metrics.bug_rate > input.limits.max_bug_rate
	msg := sprintf("bug_rate %.2f exceeds %.2f", [input.metrics.bug_rate, input.limits.max_bug_rate])
}

deny contains msg if {
	input.metrics.complexity > input.limits.max_complexity
	msg := sprintf("complexity %.2f exceeds %.2f", [input.metrics.complexity, input.limits.max_complexity])
}

deny contains msg if {
	input.metrics.maintainability < input.limits.min_maintainability
	msg := sprintf("maintainability %.2f below %.2f", [input.metrics.maintainability, input.limits.min_maintainability])
}

risk := "high" if count(deny) > 0

risk := "low" if count(deny) == 0

decision := {
	"allowed": count(deny) == 0,
	"reasons": deny,
	"risk": risk,
}
`
