package domain

// SubmitRunRequest is the request consumed at the HTTP boundary to start a run.
type SubmitRunRequest struct {
	Task    string            `json:"task"`
	Domain  string            `json:"domain"`
	Budget  float64           `json:"budget,omitempty"`
	Mode    Mode              `json:"mode,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// SubmitRunResponse acknowledges an accepted run. Execution is asynchronous;
// the result is fetched separately once the run reaches a terminal state.
type SubmitRunResponse struct {
	RunID string   `json:"run_id"`
	State RunState `json:"state"`
}

// RunStatusResponse reports a run's current state and, when terminal, its result.
type RunStatusResponse struct {
	RunID  string     `json:"run_id"`
	State  RunState   `json:"state"`
	Result *RunResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// HoldDecisionRequest is a decision on a pending HITL hold.
type HoldDecisionRequest struct {
	Decision  string `json:"decision"` // approve or reject
	Reason    string `json:"reason,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
}

// HoldDecisionResponse reports the hold and run state after a decision.
type HoldDecisionResponse struct {
	HoldID   string     `json:"hold_id"`
	Status   HoldStatus `json:"status"`
	RunID    string     `json:"run_id"`
	RunState RunState   `json:"run_state"`
}
