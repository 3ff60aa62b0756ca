// Package review scores artifacts against domain acceptance policies, computes
// ensemble confidence, and proposes fixes for failed attempts.
package review

import (
	"context"
	"fmt"
	"log"

	"github.com/cascadeai/orchestrator/internal/adapter/model"
	"github.com/cascadeai/orchestrator/internal/domain"
)

// Rule is one acceptance criterion: metric OP threshold.
type Rule struct {
	Metric    string  `json:"metric"`
	Op        string  `json:"op"` // one of > >= < <= ==
	Threshold float64 `json:"threshold"`
}

// Satisfied evaluates the rule against a metric value.
func (r Rule) Satisfied(value float64) bool {
	switch r.Op {
	case ">":
		return value > r.Threshold
	case ">=":
		return value >= r.Threshold
	case "<":
		return value < r.Threshold
	case "<=":
		return value <= r.Threshold
	case "==":
		return value == r.Threshold
	}
	return false
}

// PolicySet maps a domain tag to its ordered acceptance rules.
type PolicySet map[string][]Rule

// LoadPolicies validates a raw policy table. An unknown comparison operator or
// an empty rule list is a load-time error, not a runtime surprise.
func LoadPolicies(raw map[string][]Rule) (PolicySet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty policy table")
	}
	for dom, rules := range raw {
		if len(rules) == 0 {
			return nil, fmt.Errorf("domain %q has no rules", dom)
		}
		for _, r := range rules {
			switch r.Op {
			case ">", ">=", "<", "<=", "==":
			default:
				return nil, fmt.Errorf("domain %q metric %q: unknown operator %q", dom, r.Metric, r.Op)
			}
			if r.Metric == "" {
				return nil, fmt.Errorf("domain %q: rule with empty metric name", dom)
			}
		}
	}
	return PolicySet(raw), nil
}

// DefaultPolicies returns the built-in per-domain acceptance rules.
func DefaultPolicies() map[string][]Rule {
	return map[string][]Rule{
		"coding": {
			{Metric: "coverage", Op: ">=", Threshold: 0.97},
			{Metric: "bug_rate", Op: "<=", Threshold: 0.25},
		},
		"ui": {
			{Metric: "ui_polish", Op: ">=", Threshold: 0.9},
		},
		"trading": {
			{Metric: "sharpe", Op: ">", Threshold: 1.0},
			{Metric: "max_drawdown", Op: "<=", Threshold: 0.2},
		},
		"realestate": {
			{Metric: "cap_rate", Op: ">", Threshold: 0.08},
		},
	}
}

// Verdict is the outcome of validating one artifact.
type Verdict struct {
	Passes   bool
	Metrics  map[string]float64
	Failures []string
}

// Validator scores artifacts against the policy for their domain. Metric
// values come from a model-graded assessment of the artifact.
type Validator struct {
	policies PolicySet
	backend  model.Backend
}

// NewValidator creates a validator over a loaded policy set.
func NewValidator(policies PolicySet, backend model.Backend) *Validator {
	return &Validator{policies: policies, backend: backend}
}

// Validate checks every rule of the domain's policy against the artifact's
// assessed metrics. It fails closed: an unknown domain, an unusable
// assessment, or a missing metric all fail the artifact rather than passing it.
func (v *Validator) Validate(ctx context.Context, artifact *domain.Artifact, dom string) *Verdict {
	rules, ok := v.policies[dom]
	if !ok {
		return &Verdict{
			Passes:   false,
			Metrics:  map[string]float64{"no_policy": 1},
			Failures: []string{fmt.Sprintf("no acceptance policy for domain %q", dom)},
		}
	}

	metrics, err := v.backend.AssessMetrics(ctx, artifact.Model, artifact.Content, dom)
	if err != nil {
		log.Printf("WARN: metric assessment unusable for domain %s: %v", dom, err)
		return &Verdict{
			Passes:   false,
			Metrics:  map[string]float64{},
			Failures: []string{fmt.Sprintf("assessment unavailable: %v", err)},
		}
	}

	verdict := &Verdict{Passes: true, Metrics: metrics}
	for _, rule := range rules {
		value, present := metrics[rule.Metric]
		if !present {
			verdict.Passes = false
			verdict.Failures = append(verdict.Failures, fmt.Sprintf("metric %q missing from assessment", rule.Metric))
			continue
		}
		if !rule.Satisfied(value) {
			verdict.Passes = false
			verdict.Failures = append(verdict.Failures,
				fmt.Sprintf("%s %s %v violated: got %v", rule.Metric, rule.Op, rule.Threshold, value))
		}
	}
	return verdict
}
