package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadeai/orchestrator/internal/adapter/model"
	"github.com/cascadeai/orchestrator/internal/domain"
)

func testArtifact() *domain.Artifact {
	return &domain.Artifact{Content: "artifact body", Model: "swift"}
}

func TestLoadPoliciesRejectsBadTable(t *testing.T) {
	_, err := LoadPolicies(nil)
	assert.Error(t, err)

	_, err = LoadPolicies(map[string][]Rule{"coding": {}})
	assert.Error(t, err)

	_, err = LoadPolicies(map[string][]Rule{"coding": {{Metric: "coverage", Op: "~=", Threshold: 0.9}}})
	assert.Error(t, err)

	_, err = LoadPolicies(map[string][]Rule{"coding": {{Metric: "", Op: ">", Threshold: 0.9}}})
	assert.Error(t, err)

	_, err = LoadPolicies(DefaultPolicies())
	assert.NoError(t, err)
}

func TestValidatePassesWhenEveryRuleHolds(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueMetrics(map[string]float64{"coverage": 0.98, "bug_rate": 0.1}, nil)
	policies, err := LoadPolicies(DefaultPolicies())
	require.NoError(t, err)
	v := NewValidator(policies, backend)

	verdict := v.Validate(t.Context(), testArtifact(), "coding")
	assert.True(t, verdict.Passes)
	assert.Empty(t, verdict.Failures)
	assert.InDelta(t, 0.98, verdict.Metrics["coverage"], 1e-9)
}

func TestValidateFailsOnViolatedRule(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueMetrics(map[string]float64{"coverage": 0.50, "bug_rate": 0.1}, nil)
	policies, _ := LoadPolicies(DefaultPolicies())
	v := NewValidator(policies, backend)

	verdict := v.Validate(t.Context(), testArtifact(), "coding")
	assert.False(t, verdict.Passes)
	require.NotEmpty(t, verdict.Failures)
	assert.Contains(t, verdict.Failures[0], "coverage")
}

func TestValidateFailsClosedOnUnknownDomain(t *testing.T) {
	policies, _ := LoadPolicies(DefaultPolicies())
	v := NewValidator(policies, model.NewMockBackend())

	verdict := v.Validate(t.Context(), testArtifact(), "gardening")
	assert.False(t, verdict.Passes)
	assert.Equal(t, 1.0, verdict.Metrics["no_policy"])
}

func TestValidateFailsClosedOnUnusableAssessment(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueMetrics(nil, errors.New("gateway down"))
	policies, _ := LoadPolicies(DefaultPolicies())
	v := NewValidator(policies, backend)

	verdict := v.Validate(t.Context(), testArtifact(), "coding")
	assert.False(t, verdict.Passes)
}

func TestValidateFailsOnMissingMetric(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueMetrics(map[string]float64{"coverage": 0.99}, nil) // bug_rate absent
	policies, _ := LoadPolicies(DefaultPolicies())
	v := NewValidator(policies, backend)

	verdict := v.Validate(t.Context(), testArtifact(), "coding")
	assert.False(t, verdict.Passes)
}

type fixedScorer struct {
	value float64
	err   error
}

func (s fixedScorer) Score(_ context.Context, _ string) (float64, error) { return s.value, s.err }

func TestReviewerAveragesEnsemble(t *testing.T) {
	r, err := NewReviewer(fixedScorer{value: 0.9}, fixedScorer{value: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r.Review(t.Context(), "text"), 1e-9)
}

func TestReviewerNeutralDefaultOnUnusableScorer(t *testing.T) {
	r, err := NewReviewer(fixedScorer{value: 1.0}, fixedScorer{err: errors.New("unparseable")})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, r.Review(t.Context(), "text"), 1e-9)

	r2, _ := NewReviewer(fixedScorer{value: 1.0}, fixedScorer{value: 7.3})
	assert.InDelta(t, 0.75, r2.Review(t.Context(), "text"), 1e-9)
}

func TestReviewerNeedsTwoScorers(t *testing.T) {
	_, err := NewReviewer(fixedScorer{value: 0.9})
	assert.Error(t, err)
}

func TestReviewSingleUsesPrimaryScorerOnly(t *testing.T) {
	r, err := NewReviewer(fixedScorer{value: 0.6}, fixedScorer{value: 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, r.ReviewSingle(t.Context(), "text"), 1e-9)

	r2, _ := NewReviewer(fixedScorer{err: errors.New("unparseable")}, fixedScorer{value: 1.0})
	assert.InDelta(t, 0.5, r2.ReviewSingle(t.Context(), "text"), 1e-9)
}

func TestQualityScoreClamped(t *testing.T) {
	assert.InDelta(t, 1.0, QualityScore(1, 1, 1), 1e-9)
	assert.InDelta(t, 0.0, QualityScore(0, 0, 0), 1e-9)
	assert.InDelta(t, 0.69, QualityScore(0.8, 0.6, 0.3), 1e-9)
	assert.Equal(t, 1.0, QualityScore(2, 2, 2))
	assert.Equal(t, 0.0, QualityScore(-1, 0, 0))
}

func TestReflectorHaltsAtIterationCap(t *testing.T) {
	r := NewReflector(model.NewMockBackend(), "atlas")

	p := r.Reflect(t.Context(), "coverage too low", "coding", MaxIterations)
	assert.True(t, p.Halt)
	assert.Empty(t, p.Fix)
	assert.NotEmpty(t, p.Reason)

	// Any iteration beyond the cap also terminates.
	p = r.Reflect(t.Context(), "coverage too low", "coding", MaxIterations+3)
	assert.True(t, p.Halt)
}

func TestReflectorReturnsTopRankedFix(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueGenerate(`{"fixes":[{"description":"minor tweak","confidence":0.3},{"description":"add tests","confidence":0.9}]}`, nil)
	r := NewReflector(backend, "atlas")

	p := r.Reflect(t.Context(), "coverage too low", "coding", 0)
	assert.Equal(t, "add tests", p.Fix)
	assert.True(t, p.Halt) // 0.9 >= HaltConfidence
}

func TestReflectorLowConfidenceKeepsLooping(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueGenerate(`{"fixes":[{"description":"try harder","confidence":0.4}]}`, nil)
	r := NewReflector(backend, "atlas")

	p := r.Reflect(t.Context(), "failed", "coding", 2)
	assert.False(t, p.Halt)
	assert.Equal(t, "try harder", p.Fix)
}

func TestReflectorUnparseableReplyDegrades(t *testing.T) {
	backend := model.NewMockBackend()
	backend.QueueGenerate(`just try again I guess`, nil)
	r := NewReflector(backend, "atlas")

	p := r.Reflect(t.Context(), "failed", "coding", 1)
	assert.False(t, p.Halt)
	assert.Empty(t, p.Fix)
	assert.Equal(t, 0.0, p.Confidence)
}
