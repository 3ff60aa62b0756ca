package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cascadeai/orchestrator/config"
	"github.com/cascadeai/orchestrator/internal/adapter/model"
	"github.com/cascadeai/orchestrator/internal/cache"
	"github.com/cascadeai/orchestrator/internal/domain"
	"github.com/cascadeai/orchestrator/internal/generate"
	"github.com/cascadeai/orchestrator/internal/governance"
	"github.com/cascadeai/orchestrator/internal/metrics"
	"github.com/cascadeai/orchestrator/internal/planner"
	"github.com/cascadeai/orchestrator/internal/repository"
	"github.com/cascadeai/orchestrator/internal/retrieval"
	"github.com/cascadeai/orchestrator/internal/retry"
	"github.com/cascadeai/orchestrator/internal/review"
	"github.com/cascadeai/orchestrator/internal/router"
	"github.com/cascadeai/orchestrator/internal/service"
	transport "github.com/cascadeai/orchestrator/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestration engine...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Metrics Port: %d", cfg.MetricsPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Gateway URL: %s", cfg.GatewayURL)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize model backend (gateway client, or mock under ORCH_MODE=MOCK)
	backend := model.NewBackend(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)

	// Initialize router over the profile table
	rt, err := router.New(cfg.Profiles,
		router.WithSimpleTokenThreshold(cfg.SimpleTokenThreshold),
		router.WithPerStepCostCeiling(cfg.PerStepCeiling),
		router.WithSpecialistDomains(cfg.SpecialistDomains...),
	)
	if err != nil {
		log.Fatalf("Failed to initialize router: %v", err)
	}

	// Initialize result cache
	resultCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		log.Fatalf("Failed to initialize result cache: %v", err)
	}

	// Initialize retrieval index. The gateway serves embeddings when
	// available; mock mode falls back to the deterministic hash embedder.
	index, err := retrieval.NewIndex()
	if err != nil {
		log.Fatalf("Failed to initialize retrieval index: %v", err)
	}
	var embedder retrieval.Embedder = retrieval.NewHashEmbedder(128)
	if client, ok := backend.(*model.Client); ok {
		embedder = client
	}

	// Initialize review stack
	policies, err := review.LoadPolicies(review.DefaultPolicies())
	if err != nil {
		log.Fatalf("Failed to load acceptance policies: %v", err)
	}
	scorers := reviewScorers(backend, cfg.Profiles)
	reviewer, err := review.NewReviewer(scorers...)
	if err != nil {
		log.Fatalf("Failed to initialize reviewer: %v", err)
	}

	// Initialize governance gate
	ctx := context.Background()
	gate, err := governance.NewGate(ctx, governance.Limits{
		MaxBugRate:         cfg.MaxBugRate,
		MaxComplexity:      cfg.MaxComplexity,
		MinMaintainability: cfg.MinMaintainability,
	}, "")
	if err != nil {
		log.Fatalf("Failed to initialize governance gate: %v", err)
	}

	// Initialize metrics sink
	sink := metrics.MustNew(prometheus.DefaultRegisterer)

	// Initialize service
	svc := service.New(service.Deps{
		Store:     db,
		Config:    cfg,
		Planner:   planner.New(),
		Router:    rt,
		Index:     index,
		Embedder:  embedder,
		Generator: generate.New(backend, resultCache, cfg.CacheTTL, retry.Default()),
		Validator: review.NewValidator(policies, backend),
		Reviewer:  reviewer,
		Reflector: review.NewReflector(backend, reflectorModel(cfg.Profiles)),
		Gate:      gate,
		Metrics:   sink,
	})

	// Create servers
	externalServer := transport.NewExternalServer(svc)
	metricsServer := transport.NewMetricsServer()

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start external server: %v", err)
		}
	}()

	// Start metrics server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := metricsServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()

	log.Printf("External API started on port %d", cfg.HTTPPort)
	log.Printf("Metrics endpoint started on port %d", cfg.MetricsPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestration engine...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown external server gracefully: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown metrics server gracefully: %v", err)
	}

	log.Println("Orchestration engine stopped")
}

// reviewScorers builds the ensemble from the two cheapest profiles, doubling
// up when the table has a single entry so the reviewer still has two scorers.
func reviewScorers(backend model.Backend, profiles []domain.ModelProfile) []review.Scorer {
	sorted := append([]domain.ModelProfile(nil), profiles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	if len(sorted) == 1 {
		sorted = append(sorted, sorted[0])
	}
	scorers := make([]review.Scorer, 0, 2)
	for _, p := range sorted[:2] {
		scorers = append(scorers, review.NewBackendScorer(backend, p.Name))
	}
	return scorers
}

// reflectorModel picks the highest-precedence profile for remediation proposals.
func reflectorModel(profiles []domain.ModelProfile) string {
	best := profiles[0]
	for _, p := range profiles[1:] {
		if p.Precedence > best.Precedence {
			best = p
		}
	}
	return best.Name
}
