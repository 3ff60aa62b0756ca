package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cascadeai/orchestrator/internal/budget"
	"github.com/cascadeai/orchestrator/internal/domain"
	"github.com/cascadeai/orchestrator/internal/generate"
	"github.com/cascadeai/orchestrator/internal/governance"
	"github.com/cascadeai/orchestrator/internal/router"
)

// Run errors reported on RunResult.error. These are structured fields on the
// result, never opaque errors crossing the boundary.
const (
	errBudgetExceeded     = "BudgetExceeded"
	errRoutingUnavailable = "RoutingUnavailable"
	errModelCallFailed    = "ModelCallFailed"
	errGovernanceBlocked  = "GovernanceBlocked"
)

// checkpoint is the serialized resume state of an escalated run. It carries
// everything the pipeline needs to re-enter the loop after a hold decision.
type checkpoint struct {
	Steps        []domain.Step `json:"steps"`
	NextOrdinal  int           `json:"next_ordinal"`
	Outputs      []string      `json:"outputs"`
	Confidences  []float64     `json:"confidences"`
	Estimate     float64       `json:"estimate"`
	Ceiling      float64       `json:"ceiling"`
	Consumed     float64       `json:"consumed"`
	FallbackUsed bool          `json:"fallback_used"`
}

// runState is the in-flight state of one run. One run processes its steps
// sequentially; independent runs each get their own runState and ledger.
type runState struct {
	runID        string
	task         domain.Task
	steps        []domain.Step
	ledger       *budget.Ledger
	outputs      []string
	confidences  []float64
	estimate     float64
	fallbackUsed bool
}

// executeRun drives a fresh run through the pipeline. Runs asynchronously;
// every outcome lands on the store, never on a returned error.
func (s *Service) executeRun(runID string, task domain.Task) {
	ctx := context.Background()

	ceiling := task.Budget
	if ceiling <= 0 {
		ceiling = s.config.DefaultBudget
	}

	planStart := time.Now()
	steps := s.planner.Plan(task)
	s.metrics.ObserveStage("planning", time.Since(planStart))

	st := &runState{
		runID:  runID,
		task:   task,
		steps:  steps,
		ledger: budget.NewLedger(ceiling),
	}
	s.advance(ctx, st, 0)
}

// resumeRun re-enters the pipeline after an approved hold, continuing with the
// step after the escalated one.
func (s *Service) resumeRun(runID string, task domain.Task, cp checkpoint) {
	ctx := context.Background()
	st := &runState{
		runID:        runID,
		task:         task,
		steps:        cp.Steps,
		ledger:       budget.NewLedgerWithConsumed(cp.Ceiling, cp.Consumed),
		outputs:      cp.Outputs,
		confidences:  cp.Confidences,
		estimate:     cp.Estimate,
		fallbackUsed: cp.FallbackUsed,
	}
	log.Printf("INFO: resuming run %s at step %d", runID, cp.NextOrdinal)
	s.advance(ctx, st, cp.NextOrdinal)
}

// advance processes steps from index start until the run completes, aborts,
// fails, or escalates. Escalation returns without a terminal update; the run
// stays paused until its hold is decided.
func (s *Service) advance(ctx context.Context, st *runState, start int) {
	s.metrics.RunStarted()
	defer s.metrics.RunEnded()

	for i := start; i < len(st.steps); i++ {
		switch s.runStep(ctx, st, st.steps[i]) {
		case stepOK:
			continue
		case stepEscalated:
			s.metrics.ObserveOutcome(string(domain.RunStateEscalated))
			return
		default:
			// terminal outcomes already persisted by runStep
			return
		}
	}

	confidence := 0.0
	for _, c := range st.confidences {
		confidence += c
	}
	if len(st.confidences) > 0 {
		confidence /= float64(len(st.confidences))
	}
	s.completeRun(ctx, st, domain.RunStateDone, confidence, strings.Join(st.outputs, "\n\n"), "")
}

type stepOutcome int

const (
	stepOK stepOutcome = iota
	stepAborted
	stepFailed
	stepEscalated
)

// runStep takes one step through Route -> Retrieve -> Generate -> Validate ->
// Review -> Governance, looping through Reflect on validation failure.
func (s *Service) runStep(ctx context.Context, st *runState, step domain.Step) stepOutcome {
	s.setState(ctx, st.runID, domain.RunStateRouting)
	profile, err := s.router.Select(step, st.task.Domain, st.ledger.Remaining())
	if err != nil {
		s.appendTrace(ctx, st.runID, step.Ordinal, domain.TraceEntry{
			Agent: "router", Success: false, Error: err.Error(),
		})
		s.completeRun(ctx, st, domain.RunStateFailed, 0, "", errRoutingUnavailable)
		return stepFailed
	}

	s.setState(ctx, st.runID, domain.RunStateRetrieving)
	snippets := s.retrieve(ctx, st.task.Domain, step)

	var (
		artifact      *domain.Artifact
		metricsMap    map[string]float64
		confidence    float64
		fix           string
		iteration     int
		haltAfter     bool
		fallbackTried bool
	)
	mode := st.task.Mode.Normalize()

	for {
		s.setState(ctx, st.runID, domain.RunStateGenerating)

		estimate := router.EstimateStepCost(step, profile)
		reservation, rerr := st.ledger.Reserve(estimate)
		if rerr != nil {
			if errors.Is(rerr, domain.ErrBudgetExceeded) {
				s.completeRun(ctx, st, domain.RunStateAborted, 0, "", errBudgetExceeded)
				return stepAborted
			}
			s.completeRun(ctx, st, domain.RunStateFailed, 0, "", rerr.Error())
			return stepFailed
		}
		st.estimate += estimate

		genStart := time.Now()
		artifact, err = s.generator.Generate(ctx, generate.Input{
			Step:    step,
			Profile: profile,
			Context: snippets,
			Fix:     fix,
		})
		s.metrics.ObserveStage("generating", time.Since(genStart))
		if err != nil {
			st.ledger.Settle(reservation, 0)
			s.appendTrace(ctx, st.runID, step.Ordinal, domain.TraceEntry{
				Agent: profile.Name, Success: false, Error: err.Error(),
			})
			if fb, ok := s.router.Fallback(profile.Name); ok && !fallbackTried && mode.AllowsFallback() {
				log.Printf("WARN: run %s step %d: model %s failed, retrying on fallback %s",
					st.runID, step.Ordinal, profile.Name, fb.Name)
				fallbackTried = true
				st.fallbackUsed = true
				profile = fb
				continue
			}
			s.completeRun(ctx, st, domain.RunStateFailed, 0, "", errModelCallFailed)
			return stepFailed
		}
		st.ledger.Settle(reservation, artifact.Cost)

		s.setState(ctx, st.runID, domain.RunStateValidating)
		verdict := s.validator.Validate(ctx, artifact, st.task.Domain)
		metricsMap = verdict.Metrics

		s.setState(ctx, st.runID, domain.RunStateReviewing)
		if mode == domain.ModeEnsemble {
			confidence = s.reviewer.Review(ctx, artifact.Content)
		} else {
			confidence = s.reviewer.ReviewSingle(ctx, artifact.Content)
		}
		s.metrics.ObserveStep(artifact.Cost, confidence)

		entry := domain.TraceEntry{
			Agent:      artifact.Model,
			Success:    verdict.Passes,
			Confidence: confidence,
			Cost:       artifact.Cost,
		}
		if !verdict.Passes {
			entry.Error = strings.Join(verdict.Failures, "; ")
		}
		s.appendTrace(ctx, st.runID, step.Ordinal, entry)

		if verdict.Passes {
			break
		}
		if haltAfter {
			// Final attempt after a confident fix still failed; keep the best
			// available artifact and let the confidence speak for itself.
			s.appendTrace(ctx, st.runID, step.Ordinal, domain.TraceEntry{
				Agent: "reflector", Success: false, Confidence: confidence,
				Report: "accepted best available artifact after final fix attempt",
			})
			break
		}

		s.setState(ctx, st.runID, domain.RunStateReflecting)
		proposal := s.reflector.Reflect(ctx, strings.Join(verdict.Failures, "; "), st.task.Domain, iteration)
		iteration++

		if proposal.Halt && proposal.Fix == "" {
			s.appendTrace(ctx, st.runID, step.Ordinal, domain.TraceEntry{
				Agent: "reflector", Success: false, Confidence: confidence,
				Report: proposal.Reason,
			})
			break
		}
		if proposal.Fix != "" {
			fix = proposal.Fix
			haltAfter = proposal.Halt
		}
	}

	s.setState(ctx, st.runID, domain.RunStateGovernanceCheck)
	gm := governance.MetricsFrom(metricsMap)
	decision, err := s.gate.Check(ctx, gm)
	if err != nil {
		log.Printf("ERROR: run %s step %d: governance check failed: %v", st.runID, step.Ordinal, err)
		s.completeRun(ctx, st, domain.RunStateFailed, confidence, "", errGovernanceBlocked)
		return stepFailed
	}

	if !decision.Allowed || !governance.HITLCheck(decision.Risk) {
		return s.escalate(ctx, st, step, artifact, confidence, decision.Reasons, decision.Risk)
	}

	st.outputs = append(st.outputs, artifact.Content)
	st.confidences = append(st.confidences, confidence)
	return stepOK
}

// retrieve fetches reference snippets for a step. Retrieval never fails a run:
// an empty result, or any index error, means generation proceeds unaugmented.
func (s *Service) retrieve(ctx context.Context, dom string, step domain.Step) []string {
	if s.index == nil || s.embedder == nil || s.index.Count() == 0 {
		return nil
	}
	embedding, err := s.embedder.Embed(ctx, step.Description)
	if err != nil {
		log.Printf("WARN: embedding failed for step %d: %v", step.Ordinal, err)
		return nil
	}
	results, err := s.index.QueryCategory(ctx, embedding,
		s.config.RetrievalTopK, float32(s.config.RetrievalThreshold), dom)
	if err != nil {
		log.Printf("WARN: retrieval failed for step %d: %v", step.Ordinal, err)
		return nil
	}
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Content)
	}
	return snippets
}

// escalate records a durable hold and pauses the run. The generated artifact
// and its confidence travel in the checkpoint so an approval can accept the
// step and continue without regenerating.
func (s *Service) escalate(ctx context.Context, st *runState, step domain.Step, artifact *domain.Artifact, confidence float64, reasons []string, risk string) stepOutcome {
	hold := &domain.Hold{
		HoldID:      "hold_" + uuid.New().String()[:8],
		RunID:       st.runID,
		StepOrdinal: step.Ordinal,
		RiskLevel:   risk,
		Reason:      strings.Join(reasons, "; "),
		Status:      domain.HoldStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateHold(ctx, hold); err != nil {
		log.Printf("ERROR: failed to create hold for run %s: %v", st.runID, err)
		s.completeRun(ctx, st, domain.RunStateFailed, confidence, "", errGovernanceBlocked)
		return stepFailed
	}

	cp := checkpoint{
		Steps:        st.steps,
		NextOrdinal:  step.Ordinal + 1,
		Outputs:      append(append([]string(nil), st.outputs...), artifact.Content),
		Confidences:  append(append([]float64(nil), st.confidences...), confidence),
		Estimate:     st.estimate,
		Ceiling:      st.ledger.Ceiling(),
		Consumed:     st.ledger.Consumed(),
		FallbackUsed: st.fallbackUsed,
	}
	data, err := json.Marshal(cp)
	if err != nil {
		log.Printf("ERROR: failed to marshal checkpoint for run %s: %v", st.runID, err)
		s.completeRun(ctx, st, domain.RunStateFailed, confidence, "", errGovernanceBlocked)
		return stepFailed
	}
	if err := s.store.UpdateRunCheckpoint(ctx, st.runID, domain.RunStateEscalated, data); err != nil {
		log.Printf("ERROR: failed to checkpoint run %s: %v", st.runID, err)
	}
	log.Printf("INFO: run %s escalated at step %d (risk %s): %s", st.runID, step.Ordinal, risk, hold.Reason)
	return stepEscalated
}

// completeRun writes the terminal record for a run. The result is created once
// here and never mutated afterwards.
func (s *Service) completeRun(ctx context.Context, st *runState, state domain.RunState, confidence float64, output, errText string) {
	trace, err := s.store.ListTrace(ctx, st.runID)
	if err != nil {
		log.Printf("ERROR: failed to list trace for run %s: %v", st.runID, err)
	}

	result := &domain.RunResult{
		RunID:      st.runID,
		Confidence: confidence,
		Output:     output,
		Cost: domain.CostBreakdown{
			Estimate:  st.estimate,
			Actual:    st.ledger.Consumed(),
			Consumed:  st.ledger.Consumed(),
			Remaining: st.ledger.Remaining(),
		},
		Trace:        trace,
		FallbackUsed: st.fallbackUsed,
		Error:        errText,
	}
	if err := s.store.UpdateRunCompleted(ctx, st.runID, state, result, errText); err != nil {
		log.Printf("ERROR: failed to finalize run %s: %v", st.runID, err)
	}
	s.metrics.ObserveOutcome(string(state))
}

func (s *Service) setState(ctx context.Context, runID string, state domain.RunState) {
	if err := s.store.UpdateRunState(ctx, runID, state); err != nil {
		log.Printf("ERROR: failed to update run %s state to %s: %v", runID, state, err)
	}
}

func (s *Service) appendTrace(ctx context.Context, runID string, ordinal int, entry domain.TraceEntry) {
	if err := s.store.AppendTrace(ctx, runID, ordinal, entry); err != nil {
		log.Printf("ERROR: failed to append trace for run %s step %d: %v", runID, ordinal, err)
	}
}
