// Package repository persists runs, trace entries, and HITL holds.
package repository

import (
	"context"
	"encoding/json"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// Store is the persistence interface for the orchestration pipeline. Runs get
// created once and updated as they move through the state machine; trace rows
// are insert-only.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	UpdateRunState(ctx context.Context, runID string, state domain.RunState) error
	UpdateRunCheckpoint(ctx context.Context, runID string, state domain.RunState, checkpoint json.RawMessage) error
	UpdateRunCompleted(ctx context.Context, runID string, state domain.RunState, result *domain.RunResult, runErr string) error

	AppendTrace(ctx context.Context, runID string, ordinal int, entry domain.TraceEntry) error
	ListTrace(ctx context.Context, runID string) ([]domain.TraceEntry, error)

	CreateHold(ctx context.Context, hold *domain.Hold) error
	GetHold(ctx context.Context, holdID string) (*domain.Hold, error)
	ListHolds(ctx context.Context, status domain.HoldStatus) ([]domain.Hold, error)
	GetPendingHoldForRun(ctx context.Context, runID string) (*domain.Hold, error)
	DecideHold(ctx context.Context, holdID string, status domain.HoldStatus, decidedBy, reason string) (bool, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
