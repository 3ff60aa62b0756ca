// Package service owns the run lifecycle: it composes the planner, router,
// retrieval index, generator, review loop, and governance gate into the
// pipeline state machine, and persists every transition.
package service

import (
	"github.com/cascadeai/orchestrator/config"
	"github.com/cascadeai/orchestrator/internal/generate"
	"github.com/cascadeai/orchestrator/internal/governance"
	"github.com/cascadeai/orchestrator/internal/metrics"
	"github.com/cascadeai/orchestrator/internal/planner"
	"github.com/cascadeai/orchestrator/internal/repository"
	"github.com/cascadeai/orchestrator/internal/retrieval"
	"github.com/cascadeai/orchestrator/internal/review"
	"github.com/cascadeai/orchestrator/internal/router"
)

// Deps are the collaborators a Service is built from. All are constructed once
// at startup and injected; the service holds no ambient globals.
type Deps struct {
	Store     repository.Store
	Config    *config.Config
	Planner   *planner.Planner
	Router    *router.Router
	Index     *retrieval.Index
	Embedder  retrieval.Embedder
	Generator *generate.Generator
	Validator *review.Validator
	Reviewer  *review.Reviewer
	Reflector *review.Reflector
	Gate      *governance.Gate
	Metrics   *metrics.Metrics
}

type Service struct {
	store     repository.Store
	config    *config.Config
	planner   *planner.Planner
	router    *router.Router
	index     *retrieval.Index
	embedder  retrieval.Embedder
	generator *generate.Generator
	validator *review.Validator
	reviewer  *review.Reviewer
	reflector *review.Reflector
	gate      *governance.Gate
	metrics   *metrics.Metrics
}

func New(deps Deps) *Service {
	return &Service{
		store:     deps.Store,
		config:    deps.Config,
		planner:   deps.Planner,
		router:    deps.Router,
		index:     deps.Index,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		validator: deps.Validator,
		reviewer:  deps.Reviewer,
		reflector: deps.Reflector,
		gate:      deps.Gate,
		metrics:   deps.Metrics,
	}
}
