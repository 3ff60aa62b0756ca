// Package router chooses a model backend per step using cost and capability
// profiles. Selection is pure: it never invokes a model.
package router

import (
	"fmt"
	"sort"

	"github.com/cascadeai/orchestrator/internal/domain"
)

const (
	// DefaultSimpleTokenThreshold is the complexity bound below which a step
	// may be served by the cheapest eligible profile.
	DefaultSimpleTokenThreshold = 256
	// DefaultPerStepCostCeiling caps the estimated cost of a cheap-tier pick.
	DefaultPerStepCostCeiling = 0.05
)

// Router selects profiles for steps. Profiles are read-only after construction.
type Router struct {
	profiles        []domain.ModelProfile
	specialists     map[string]bool
	simpleThreshold int
	perStepCeiling  float64
}

// Option customizes a Router.
type Option func(*Router)

// WithSimpleTokenThreshold overrides the low-complexity bound.
func WithSimpleTokenThreshold(n int) Option {
	return func(r *Router) { r.simpleThreshold = n }
}

// WithPerStepCostCeiling overrides the cheap-tier cost ceiling.
func WithPerStepCostCeiling(c float64) Option {
	return func(r *Router) { r.perStepCeiling = c }
}

// WithSpecialistDomains declares domains that must be served by a profile
// carrying the matching capability regardless of cost.
func WithSpecialistDomains(domains ...string) Option {
	return func(r *Router) {
		r.specialists = make(map[string]bool, len(domains))
		for _, d := range domains {
			r.specialists[d] = true
		}
	}
}

// New creates a router over the given profile table.
func New(profiles []domain.ModelProfile, opts ...Option) (*Router, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("empty profile table")
	}
	r := &Router{
		profiles:        profiles,
		specialists:     map[string]bool{"ui": true},
		simpleThreshold: DefaultSimpleTokenThreshold,
		perStepCeiling:  DefaultPerStepCostCeiling,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Select routes a step. Policy, evaluated in order:
//  1. specialist domain -> the profile carrying that capability, regardless of cost;
//  2. low-complexity step whose estimated cost fits under the per-step ceiling
//     (and under budgetHint when positive) -> cheapest eligible profile;
//  3. otherwise -> the highest-precedence general profile.
//
// Ties at the same tier break toward the cheaper profile, then by name, so the
// outcome is deterministic. Returns domain.ErrRoutingUnavailable when no
// profile can serve the domain.
func (r *Router) Select(step domain.Step, dom string, budgetHint float64) (domain.ModelProfile, error) {
	if r.specialists[dom] {
		if p, ok := r.cheapestWith(dom); ok {
			return p, nil
		}
		return domain.ModelProfile{}, fmt.Errorf("domain %q needs a specialist: %w", dom, domain.ErrRoutingUnavailable)
	}

	eligible := r.eligibleFor(dom)
	if len(eligible) == 0 {
		return domain.ModelProfile{}, fmt.Errorf("domain %q: %w", dom, domain.ErrRoutingUnavailable)
	}

	tokens := EstimateTokens(step.Description)
	if tokens < r.simpleThreshold {
		cheapest := cheapestOf(eligible)
		cost := EstimateCost(tokens, cheapest)
		if cost < r.perStepCeiling && (budgetHint <= 0 || cost < budgetHint) {
			return cheapest, nil
		}
	}

	return generalTier(eligible), nil
}

// EstimateCost returns the estimated cost of generating a step's artifact on
// the given profile, used for budget reservations.
func EstimateCost(tokens int, p domain.ModelProfile) float64 {
	return float64(tokens) / 1000 * p.Price
}

// EstimateStepCost estimates routing cost for a step and profile.
func EstimateStepCost(step domain.Step, p domain.ModelProfile) float64 {
	return EstimateCost(EstimateTokens(step.Description), p)
}

// Fallback returns the highest-precedence general profile other than exclude,
// used when a step's routed model fails persistently.
func (r *Router) Fallback(exclude string) (domain.ModelProfile, bool) {
	var candidates []domain.ModelProfile
	for _, p := range r.profiles {
		if p.Name != exclude && p.HasCapability(domain.CapabilityGeneral) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return domain.ModelProfile{}, false
	}
	return generalTier(candidates), true
}

func (r *Router) eligibleFor(dom string) []domain.ModelProfile {
	var out []domain.ModelProfile
	for _, p := range r.profiles {
		if p.HasCapability(dom) || p.HasCapability(domain.CapabilityGeneral) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Router) cheapestWith(capability string) (domain.ModelProfile, bool) {
	var matches []domain.ModelProfile
	for _, p := range r.profiles {
		if p.HasCapability(capability) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return domain.ModelProfile{}, false
	}
	return cheapestOf(matches), true
}

func cheapestOf(profiles []domain.ModelProfile) domain.ModelProfile {
	sorted := append([]domain.ModelProfile(nil), profiles...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted[0]
}

func generalTier(profiles []domain.ModelProfile) domain.ModelProfile {
	sorted := append([]domain.ModelProfile(nil), profiles...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Precedence != sorted[j].Precedence {
			return sorted[i].Precedence > sorted[j].Precedence
		}
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted[0]
}
