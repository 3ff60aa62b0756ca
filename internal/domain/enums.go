// Package domain defines the core domain models for the orchestration engine.
package domain

// RunState represents the state of a run inside the pipeline state machine.
type RunState string

const (
	RunStatePlanning        RunState = "PLANNING"
	RunStateRouting         RunState = "ROUTING"
	RunStateRetrieving      RunState = "RETRIEVING"
	RunStateGenerating      RunState = "GENERATING"
	RunStateValidating      RunState = "VALIDATING"
	RunStateReviewing       RunState = "REVIEWING"
	RunStateGovernanceCheck RunState = "GOVERNANCE_CHECK"
	RunStateReflecting      RunState = "REFLECTING"
	RunStateDone            RunState = "DONE"
	RunStateAborted         RunState = "ABORTED"
	RunStateEscalated       RunState = "ESCALATED"
	RunStateFailed          RunState = "FAILED"
)

// Terminal reports whether the state ends a run for good. ESCALATED is a
// durable pause, not a terminal state: the run resumes once its hold is decided.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateDone, RunStateAborted, RunStateFailed:
		return true
	}
	return false
}

// Mode selects how a run treats its model backends.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeFallback Mode = "fallback"
	ModeEnsemble Mode = "ensemble"
)

// ValidMode reports whether m is a known run mode. The empty mode is accepted
// and treated as ModeFallback by the orchestrator.
func ValidMode(m Mode) bool {
	switch m {
	case "", ModeSingle, ModeFallback, ModeEnsemble:
		return true
	}
	return false
}

// Normalize maps the empty mode to the default ModeFallback.
func (m Mode) Normalize() Mode {
	if m == "" {
		return ModeFallback
	}
	return m
}

// AllowsFallback reports whether a persistently failing model call may be
// retried once on the fallback profile. Only ModeSingle pins the run to its
// routed profile.
func (m Mode) AllowsFallback() bool {
	return m.Normalize() != ModeSingle
}

// HoldStatus represents the status of a HITL hold.
type HoldStatus string

const (
	HoldStatusPending  HoldStatus = "PENDING"
	HoldStatusApproved HoldStatus = "APPROVED"
	HoldStatusRejected HoldStatus = "REJECTED"
)

// Risk levels produced by the governance policy.
const (
	RiskLow  = "low"
	RiskHigh = "high"
)
