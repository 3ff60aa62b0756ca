package router

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadeai/orchestrator/internal/domain"
)

func testProfiles() []domain.ModelProfile {
	return []domain.ModelProfile{
		{Name: "nano", Price: 0.1, Capabilities: []string{"general"}, Precedence: 1},
		{Name: "swift", Price: 0.5, Capabilities: []string{"general", "coding"}, Precedence: 2},
		{Name: "atlas", Price: 5.0, Capabilities: []string{"general", "coding"}, Precedence: 3},
		{Name: "pixel", Price: 2.0, Capabilities: []string{"ui"}, Precedence: 2},
	}
}

func TestSelectCheapestForSimpleStep(t *testing.T) {
	r, err := New(testProfiles())
	require.NoError(t, err)

	step := domain.Step{Ordinal: 0, Description: "Build REST API"}
	p, err := r.Select(step, "coding", 0.10)
	require.NoError(t, err)
	assert.Equal(t, "nano", p.Name)
}

func TestSelectSpecialistRegardlessOfCost(t *testing.T) {
	r, err := New(testProfiles())
	require.NoError(t, err)

	p, err := r.Select(domain.Step{Description: "hi"}, "ui", 0)
	require.NoError(t, err)
	assert.Equal(t, "pixel", p.Name)
}

func TestSelectPremiumForComplexStep(t *testing.T) {
	r, err := New(testProfiles(), WithSimpleTokenThreshold(8))
	require.NoError(t, err)

	long := strings.Repeat("design and implement a distributed ledger subsystem ", 20)
	p, err := r.Select(domain.Step{Description: long}, "coding", 0)
	require.NoError(t, err)
	assert.Equal(t, "atlas", p.Name)
}

func TestSelectPremiumWhenCheapTierTooExpensive(t *testing.T) {
	r, err := New(testProfiles(), WithPerStepCostCeiling(0.0000001))
	require.NoError(t, err)

	p, err := r.Select(domain.Step{Description: "tiny step"}, "coding", 0)
	require.NoError(t, err)
	assert.Equal(t, "atlas", p.Name)
}

func TestSelectRoutingUnavailable(t *testing.T) {
	r, err := New([]domain.ModelProfile{
		{Name: "pixel", Price: 2.0, Capabilities: []string{"ui"}, Precedence: 1},
	})
	require.NoError(t, err)

	_, err = r.Select(domain.Step{Description: "x"}, "coding", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRoutingUnavailable))
}

func TestSelectSpecialistUnavailable(t *testing.T) {
	r, err := New([]domain.ModelProfile{
		{Name: "nano", Price: 0.1, Capabilities: []string{"general"}, Precedence: 1},
	})
	require.NoError(t, err)

	_, err = r.Select(domain.Step{Description: "x"}, "ui", 0)
	assert.True(t, errors.Is(err, domain.ErrRoutingUnavailable))
}

func TestSelectDeterministicTieBreak(t *testing.T) {
	profiles := []domain.ModelProfile{
		{Name: "beta", Price: 0.1, Capabilities: []string{"general"}, Precedence: 1},
		{Name: "alfa", Price: 0.1, Capabilities: []string{"general"}, Precedence: 1},
	}
	r, err := New(profiles)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		p, err := r.Select(domain.Step{Description: "small"}, "coding", 0)
		require.NoError(t, err)
		assert.Equal(t, "alfa", p.Name)
	}
}

func TestSelectIsPure(t *testing.T) {
	r, err := New(testProfiles())
	require.NoError(t, err)

	step := domain.Step{Description: "Build REST API"}
	first, err := r.Select(step, "coding", 0.1)
	require.NoError(t, err)
	second, err := r.Select(step, "coding", 0.1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFallbackExcludesFailedProfile(t *testing.T) {
	r, err := New(testProfiles())
	require.NoError(t, err)

	fb, ok := r.Fallback("atlas")
	require.True(t, ok)
	assert.Equal(t, "swift", fb.Name)

	_, ok = r.Fallback("nano")
	assert.True(t, ok)
}

func TestNewRejectsEmptyTable(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestEstimateTokensNonEmpty(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("Build REST API"), 0)
	short := EstimateTokens("short")
	long := EstimateTokens(strings.Repeat("an increasingly long task description ", 50))
	assert.Greater(t, long, short)
}
