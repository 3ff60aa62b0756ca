// Package http provides the HTTP server wiring for the orchestration engine.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cascadeai/orchestrator/internal/service"
	v1 "github.com/cascadeai/orchestrator/internal/transport/http/v1"
)

// NewExternalServer creates and configures the external-facing HTTP server.
// This server handles run submission, result/trace queries, and hold decisions.
func NewExternalServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	return e
}

// NewMetricsServer creates the server exposing the Prometheus scrape endpoint.
// Kept off the external listener so the scrape surface stays internal.
func NewMetricsServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
