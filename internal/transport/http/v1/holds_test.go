package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadeai/orchestrator/internal/domain"
)

func TestDecideHoldNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"decision":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/holds/:hold_id/decide")
	c.SetParamNames("hold_id")
	c.SetParamValues("hold_missing")

	require.NoError(t, h.DecideHold(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoldEscalationAndDecision(t *testing.T) {
	e := echo.New()
	h, backend := newTestHandler(t)

	// Governance denies on bug rate while the trading acceptance policy passes.
	backend.QueueMetrics(map[string]float64{
		"sharpe": 1.5, "max_drawdown": 0.1,
		"bug_rate": 0.30, "complexity": 3, "maintainability": 0.9,
	}, nil)

	body := `{"task":"Rebalance the portfolio","domain":"trading","budget":0.10}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	require.NoError(t, h.SubmitRun(e.NewContext(req, rec)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted domain.SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))

	// Wait for the run to pause and its hold to appear.
	var holdID string
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/v1/holds?status=pending", nil)
		rec := httptest.NewRecorder()
		if err := h.ListHolds(e.NewContext(req, rec)); err != nil || rec.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Holds []domain.Hold `json:"holds"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Holds) == 0 {
			return false
		}
		holdID = resp.Holds[0].HoldID
		return resp.Holds[0].RunID == submitted.RunID
	}, 2*time.Second, 10*time.Millisecond)

	// Approve the hold; the run resumes and completes.
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"decision":"approve","decided_by":"oncall"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/holds/:hold_id/decide")
	c.SetParamNames("hold_id")
	c.SetParamValues(holdID)
	require.NoError(t, h.DecideHold(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var decided domain.HoldDecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, domain.HoldStatusApproved, decided.Status)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/runs/:run_id")
		c.SetParamNames("run_id")
		c.SetParamValues(submitted.RunID)
		if err := h.GetRun(c); err != nil {
			return false
		}
		var status domain.RunStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State == domain.RunStateDone
	}, 2*time.Second, 10*time.Millisecond)

	// A second decision on the same hold conflicts.
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"decision":"reject"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetPath("/v1/holds/:hold_id/decide")
	c.SetParamNames("hold_id")
	c.SetParamValues(holdID)
	require.NoError(t, h.DecideHold(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
