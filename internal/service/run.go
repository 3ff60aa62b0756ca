package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// SubmitRun validates and accepts a run request. Execution is asynchronous;
// the caller polls GetRun for the result.
func (s *Service) SubmitRun(ctx context.Context, req domain.SubmitRunRequest) (*domain.SubmitRunResponse, error) {
	if req.Task == "" {
		return nil, fmt.Errorf("task is required")
	}
	if req.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if !domain.ValidMode(req.Mode) {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if req.Budget < 0 {
		return nil, fmt.Errorf("budget must not be negative")
	}

	runID := "run_" + uuid.New().String()[:8]
	run := &domain.Run{
		RunID: runID,
		Task: domain.Task{
			Description: req.Task,
			Domain:      req.Domain,
			Budget:      req.Budget,
			Mode:        req.Mode,
			Context:     req.Context,
		},
		State:     domain.RunStatePlanning,
		StartedAt: time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	go s.executeRun(runID, run.Task)

	return &domain.SubmitRunResponse{RunID: runID, State: run.State}, nil
}

// GetRun returns a run's current state and, when terminal, its result.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetTrace returns a run's trace rows in insertion order.
func (s *Service) GetTrace(ctx context.Context, runID string) ([]domain.TraceEntry, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run not found")
	}
	entries, err := s.store.ListTrace(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trace: %w", err)
	}
	return entries, nil
}
