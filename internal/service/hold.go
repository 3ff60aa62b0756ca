package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cascadeai/orchestrator/internal/budget"
	"github.com/cascadeai/orchestrator/internal/domain"
)

// ListHolds lists holds, optionally filtered by status.
func (s *Service) ListHolds(ctx context.Context, status domain.HoldStatus) ([]domain.Hold, error) {
	holds, err := s.store.ListHolds(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}
	return holds, nil
}

// ResolveHold applies a decision to a pending hold. Approval resumes the
// paused run from its checkpoint; rejection fails it. Decisions are
// first-writer-wins: a second decision on the same hold is an error.
func (s *Service) ResolveHold(ctx context.Context, holdID string, req domain.HoldDecisionRequest) (*domain.HoldDecisionResponse, error) {
	var status domain.HoldStatus
	switch req.Decision {
	case "approve":
		status = domain.HoldStatusApproved
	case "reject":
		status = domain.HoldStatusRejected
	default:
		return nil, fmt.Errorf("decision must be approve or reject, got %q", req.Decision)
	}

	hold, err := s.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	if hold == nil {
		return nil, fmt.Errorf("hold not found")
	}

	decided, err := s.store.DecideHold(ctx, holdID, status, req.DecidedBy, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to decide hold: %w", err)
	}
	if !decided {
		return nil, fmt.Errorf("hold already decided")
	}

	run, err := s.store.GetRun(ctx, hold.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found for hold", hold.RunID)
	}

	var cp checkpoint
	if len(run.Checkpoint) > 0 {
		if err := json.Unmarshal(run.Checkpoint, &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint for run %s: %w", run.RunID, err)
		}
	}

	if status == domain.HoldStatusRejected {
		s.failRejected(ctx, run, cp)
		return &domain.HoldDecisionResponse{
			HoldID: holdID, Status: status, RunID: run.RunID, RunState: domain.RunStateFailed,
		}, nil
	}

	log.Printf("INFO: hold %s approved by %s, resuming run %s", holdID, req.DecidedBy, run.RunID)
	go s.resumeRun(run.RunID, run.Task, cp)

	return &domain.HoldDecisionResponse{
		HoldID: holdID, Status: status, RunID: run.RunID, RunState: domain.RunStateRouting,
	}, nil
}

// failRejected finalizes a run whose hold was rejected. The spend recorded at
// escalation still counts against the ceiling in the final breakdown.
func (s *Service) failRejected(ctx context.Context, run *domain.Run, cp checkpoint) {
	st := &runState{
		runID:        run.RunID,
		task:         run.Task,
		steps:        cp.Steps,
		ledger:       budget.NewLedgerWithConsumed(cp.Ceiling, cp.Consumed),
		estimate:     cp.Estimate,
		fallbackUsed: cp.FallbackUsed,
	}
	s.completeRun(ctx, st, domain.RunStateFailed, 0, "", errGovernanceBlocked)
}
