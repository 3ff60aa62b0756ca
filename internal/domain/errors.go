package domain

import "errors"

// Sentinel errors of the pipeline. Recoverable conditions (validation failure,
// cache miss, retrieval miss) are ordinary values, not errors; only conditions
// that end a step or a run are modeled here.
var (
	// ErrBudgetExceeded aborts the whole run. The ledger is never partially
	// mutated when this is returned.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrRoutingUnavailable means no model profile matches the step's domain.
	// Fatal for the step, never retried.
	ErrRoutingUnavailable = errors.New("no model profile available")

	// ErrModelCallFailed is a step-level failure after retries are exhausted.
	ErrModelCallFailed = errors.New("model call failed")

	// ErrGovernanceBlocked halts the run pending external HITL resolution.
	ErrGovernanceBlocked = errors.New("governance blocked")

	// ErrParse means a model's output could not be decoded against the
	// expected schema. Callers substitute a documented default.
	ErrParse = errors.New("unparseable model output")
)
