package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// ListHolds lists HITL holds, filtered by ?status= when given.
// GET /v1/holds
func (h *Handler) ListHolds(c echo.Context) error {
	ctx := c.Request().Context()
	status := domain.HoldStatus(strings.ToUpper(c.QueryParam("status")))

	holds, err := h.service.ListHolds(ctx, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if holds == nil {
		holds = []domain.Hold{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"holds": holds})
}

// DecideHold applies an approve/reject decision to a pending hold. Approval
// resumes the escalated run; rejection fails it.
// POST /v1/holds/:hold_id/decide
func (h *Handler) DecideHold(c echo.Context) error {
	ctx := c.Request().Context()
	holdID := c.Param("hold_id")

	var req domain.HoldDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.ResolveHold(ctx, holdID, req)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "not found"):
			return c.JSON(http.StatusNotFound, map[string]string{"error": msg})
		case strings.Contains(msg, "already decided"):
			return c.JSON(http.StatusConflict, map[string]string{"error": msg})
		case strings.Contains(msg, "decision must be"):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
		}
	}

	return c.JSON(http.StatusOK, resp)
}
