package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadeai/orchestrator/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &domain.Run{
		RunID: "run_1a2b3c4d",
		Task: domain.Task{
			Description: "implement the parser",
			Domain:      "coding",
			Budget:      2.0,
		},
		State:     domain.RunStatePlanning,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, "run_1a2b3c4d")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "coding", got.Task.Domain)
	assert.Equal(t, domain.RunStatePlanning, got.State)
	assert.Nil(t, got.EndedAt)

	require.NoError(t, store.UpdateRunState(ctx, run.RunID, domain.RunStateGenerating))
	got, err = store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateGenerating, got.State)

	result := &domain.RunResult{
		RunID:      run.RunID,
		Confidence: 0.91,
		Output:     "done",
		Cost:       domain.CostBreakdown{Estimate: 0.5, Actual: 0.4, Consumed: 0.4, Remaining: 1.6},
	}
	require.NoError(t, store.UpdateRunCompleted(ctx, run.RunID, domain.RunStateDone, result, ""))

	got, err = store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateDone, got.State)
	require.NotNil(t, got.EndedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, 0.91, got.Result.Confidence)
	assert.Empty(t, got.Checkpoint)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckpointStoredAndClearedOnCompletion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &domain.Run{
		RunID:     "run_cp",
		Task:      domain.Task{Description: "risky refactor", Domain: "coding"},
		State:     domain.RunStatePlanning,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	cp := json.RawMessage(`{"step":2,"consumed":0.3}`)
	require.NoError(t, store.UpdateRunCheckpoint(ctx, run.RunID, domain.RunStateEscalated, cp))

	got, err := store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateEscalated, got.State)
	assert.JSONEq(t, string(cp), string(got.Checkpoint))

	require.NoError(t, store.UpdateRunCompleted(ctx, run.RunID, domain.RunStateFailed, nil, "rejected by reviewer"))
	got, err = store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Empty(t, got.Checkpoint)
	assert.Equal(t, "rejected by reviewer", got.Error)
}

func TestTraceAppendOnlyOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &domain.Run{
		RunID:     "run_tr",
		Task:      domain.Task{Description: "build the dashboard", Domain: "ui"},
		State:     domain.RunStatePlanning,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	entries := []domain.TraceEntry{
		{Agent: "nano-fast", Success: false, Confidence: 0.4, Cost: 0.01, Error: "validation failed"},
		{Agent: "atlas-pro", Success: true, Confidence: 0.88, Cost: 0.12, Report: "ok after retry"},
	}
	for i, e := range entries {
		require.NoError(t, store.AppendTrace(ctx, run.RunID, i, e))
	}

	got, err := store.ListTrace(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "nano-fast", got[0].Agent)
	assert.Equal(t, "validation failed", got[0].Error)
	assert.Equal(t, "atlas-pro", got[1].Agent)
	assert.True(t, got[1].Success)
}

func TestHoldDecideOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &domain.Run{
		RunID:     "run_h",
		Task:      domain.Task{Description: "deploy", Domain: "coding"},
		State:     domain.RunStateEscalated,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	hold := &domain.Hold{
		HoldID:      "hold_9f8e7d6c",
		RunID:       run.RunID,
		StepOrdinal: 1,
		RiskLevel:   domain.RiskHigh,
		Reason:      "bug_rate above limit",
		Status:      domain.HoldStatusPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.CreateHold(ctx, hold))

	pending, err := store.GetPendingHoldForRun(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, hold.HoldID, pending.HoldID)

	decided, err := store.DecideHold(ctx, hold.HoldID, domain.HoldStatusApproved, "oncall", "reviewed diff")
	require.NoError(t, err)
	assert.True(t, decided)

	// A second decision must lose.
	decided, err = store.DecideHold(ctx, hold.HoldID, domain.HoldStatusRejected, "other", "")
	require.NoError(t, err)
	assert.False(t, decided)

	got, err := store.GetHold(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusApproved, got.Status)
	assert.Equal(t, "oncall", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)

	pending, err = store.GetPendingHoldForRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := &domain.Run{
			RunID:     "run_" + string(rune('a'+i)),
			Task:      domain.Task{Description: "task", Domain: "coding"},
			State:     domain.RunStateDone,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_c", runs[0].RunID)
	assert.Equal(t, "run_b", runs[1].RunID)
}
