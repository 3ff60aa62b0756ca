package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// SubmitRun accepts a task and starts a run asynchronously.
// POST /v1/runs
func (h *Handler) SubmitRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.SubmitRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.SubmitRun(ctx, req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, resp)
}

// GetRun returns a run's state and, once terminal, its result.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, domain.RunStatusResponse{
		RunID:  run.RunID,
		State:  run.State,
		Result: run.Result,
		Error:  run.Error,
	})
}

// GetRunTrace returns a run's trace rows in insertion order.
// GET /v1/runs/:run_id/trace
func (h *Handler) GetRunTrace(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	entries, err := h.service.GetTrace(ctx, runID)
	if err != nil {
		if err.Error() == "run not found" {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if entries == nil {
		entries = []domain.TraceEntry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"trace":  entries,
	})
}
