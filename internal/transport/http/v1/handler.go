// Package v1 provides the external HTTP API of the orchestration engine.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cascadeai/orchestrator/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Run API
	e.POST("/v1/runs", h.SubmitRun)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/trace", h.GetRunTrace)

	// HITL hold API
	e.GET("/v1/holds", h.ListHolds)
	e.POST("/v1/holds/:hold_id/decide", h.DecideHold)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
