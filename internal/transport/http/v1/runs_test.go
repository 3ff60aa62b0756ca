package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadeai/orchestrator/config"
	"github.com/cascadeai/orchestrator/internal/adapter/model"
	"github.com/cascadeai/orchestrator/internal/cache"
	"github.com/cascadeai/orchestrator/internal/domain"
	"github.com/cascadeai/orchestrator/internal/generate"
	"github.com/cascadeai/orchestrator/internal/governance"
	"github.com/cascadeai/orchestrator/internal/planner"
	"github.com/cascadeai/orchestrator/internal/repository"
	"github.com/cascadeai/orchestrator/internal/retry"
	"github.com/cascadeai/orchestrator/internal/review"
	"github.com/cascadeai/orchestrator/internal/router"
	"github.com/cascadeai/orchestrator/internal/service"
)

func newTestHandler(t *testing.T) (*Handler, *model.MockBackend) {
	t.Helper()

	backend := model.NewMockBackend()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt, err := router.New(config.DefaultProfiles())
	require.NoError(t, err)

	resultCache, err := cache.New(64)
	require.NoError(t, err)

	policies, err := review.LoadPolicies(review.DefaultPolicies())
	require.NoError(t, err)

	reviewer, err := review.NewReviewer(
		review.NewBackendScorer(backend, "nano-fast"),
		review.NewBackendScorer(backend, "swift-mid"),
	)
	require.NoError(t, err)

	gate, err := governance.NewGate(context.Background(), governance.DefaultLimits(), "")
	require.NoError(t, err)

	svc := service.New(service.Deps{
		Store:     store,
		Config:    &config.Config{DefaultBudget: 1.0, RetrievalTopK: 3, RetrievalThreshold: 0.8},
		Planner:   planner.New(),
		Router:    rt,
		Generator: generate.New(backend, resultCache, time.Minute, retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}),
		Validator: review.NewValidator(policies, backend),
		Reviewer:  reviewer,
		Reflector: review.NewReflector(backend, "swift-mid"),
		Gate:      gate,
	})
	return NewHandler(svc), backend
}

func TestSubmitRunRejectsInvalidBody(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(`{"domain":"coding"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	require.NoError(t, h.SubmitRun(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAndFetchRun(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body := `{"task":"Build REST API","domain":"coding","budget":0.10}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	require.NoError(t, h.SubmitRun(e.NewContext(req, rec)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted domain.SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.RunID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/runs/:run_id")
		c.SetParamNames("run_id")
		c.SetParamValues(submitted.RunID)
		if err := h.GetRun(c); err != nil || rec.Code != http.StatusOK {
			return false
		}
		var status domain.RunStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State == domain.RunStateDone
	}, 2*time.Second, 10*time.Millisecond)

	// Trace has the single successful attempt.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id/trace")
	c.SetParamNames("run_id")
	c.SetParamValues(submitted.RunID)
	require.NoError(t, h.GetRunTrace(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var traceResp struct {
		Trace []domain.TraceEntry `json:"trace"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &traceResp))
	require.Len(t, traceResp.Trace, 1)
	assert.True(t, traceResp.Trace[0].Success)
}

func TestGetRunNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/runs/:run_id")
	c.SetParamNames("run_id")
	c.SetParamValues("run_missing")

	require.NoError(t, h.GetRun(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
