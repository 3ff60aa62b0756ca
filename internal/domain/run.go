package domain

import (
	"encoding/json"
	"time"
)

// Run represents a single execution of a task through the pipeline.
type Run struct {
	RunID      string          `json:"run_id"`
	Task       Task            `json:"task"`
	State      RunState        `json:"state"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Result     *RunResult      `json:"result,omitempty"`
	Checkpoint json.RawMessage `json:"checkpoint,omitempty"` // serialized resume state while ESCALATED
	Error      string          `json:"error,omitempty"`
}

// TraceEntry records one agent's contribution to a run. Trace rows are
// append-only; they are never updated once written.
type TraceEntry struct {
	Agent      string  `json:"agent"`
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Cost       float64 `json:"cost"`
	Error      string  `json:"error,omitempty"`
	Report     string  `json:"report,omitempty"`
}

// CostBreakdown summarizes spending for one run against its budget ceiling.
type CostBreakdown struct {
	Estimate  float64 `json:"estimate"`
	Actual    float64 `json:"actual"`
	Consumed  float64 `json:"consumed"`
	Remaining float64 `json:"remaining"`
}

// RunResult is the final record of a run. It is created once, when the run
// reaches a terminal state, and never mutated afterwards.
type RunResult struct {
	RunID        string        `json:"run_id"`
	Confidence   float64       `json:"confidence"`
	Output       string        `json:"output"`
	Cost         CostBreakdown `json:"cost"`
	Trace        []TraceEntry  `json:"trace"`
	FallbackUsed bool          `json:"fallback_used"`
	Error        string        `json:"error,omitempty"`
}

// Artifact is the output of one generation attempt.
type Artifact struct {
	Content   string  `json:"content"`
	Model     string  `json:"model"`
	Cost      float64 `json:"cost"`
	Tokens    int     `json:"tokens"`
	FromCache bool    `json:"from_cache"`
}

// Hold is a pending HITL escalation keyed by run and step. The external HITL
// system decides it; the orchestrator resumes or fails the run accordingly.
type Hold struct {
	HoldID       string     `json:"hold_id"`
	RunID        string     `json:"run_id"`
	StepOrdinal  int        `json:"step_ordinal"`
	RiskLevel    string     `json:"risk_level"`
	Reason       string     `json:"reason"`
	Status       HoldStatus `json:"status"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	DecideReason string     `json:"decide_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}
