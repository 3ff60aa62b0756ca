package review

import (
	"context"
	"fmt"
	"log"

	"github.com/cascadeai/orchestrator/internal/adapter/model"
)

// NeedsReflectionThreshold: confidence below this signals "needs reflection"
// to the orchestrator. Advisory, not an error.
const NeedsReflectionThreshold = 0.8

// neutralScore is contributed by any scorer whose output cannot be used.
const neutralScore = 0.5

// Scorer grades a piece of text in [0,1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// backendScorer adapts one model backend+profile pair into a Scorer.
type backendScorer struct {
	backend model.Backend
	model   string
}

// NewBackendScorer returns a Scorer backed by the named model.
func NewBackendScorer(backend model.Backend, modelName string) Scorer {
	return &backendScorer{backend: backend, model: modelName}
}

func (s *backendScorer) Score(ctx context.Context, text string) (float64, error) {
	return s.backend.Score(ctx, s.model, text)
}

// Reviewer computes ensemble confidence across independent scorers.
type Reviewer struct {
	scorers []Scorer
}

// NewReviewer requires at least two scorers for a meaningful ensemble.
func NewReviewer(scorers ...Scorer) (*Reviewer, error) {
	if len(scorers) < 2 {
		return nil, fmt.Errorf("ensemble needs at least 2 scorers, got %d", len(scorers))
	}
	return &Reviewer{scorers: scorers}, nil
}

// Review averages the scorers' outputs. A scorer that fails or returns a value
// outside [0,1] contributes the neutral default instead of aborting the review.
func (r *Reviewer) Review(ctx context.Context, text string) float64 {
	var sum float64
	for i, s := range r.scorers {
		sum += r.scoreOrNeutral(ctx, i, s, text)
	}
	return sum / float64(len(r.scorers))
}

// ReviewSingle scores with the primary scorer only, for runs that did not
// request an ensemble. Degrades to the neutral default the same way Review does.
func (r *Reviewer) ReviewSingle(ctx context.Context, text string) float64 {
	return r.scoreOrNeutral(ctx, 0, r.scorers[0], text)
}

func (r *Reviewer) scoreOrNeutral(ctx context.Context, i int, s Scorer, text string) float64 {
	score, err := s.Score(ctx, text)
	if err != nil || score < 0 || score > 1 {
		if err != nil {
			log.Printf("WARN: scorer %d unusable, using neutral default: %v", i, err)
		}
		score = neutralScore
	}
	return score
}

// QualityScore is the composite run score: weighted completion, polish and
// safety, clamped into [0,1]. The weights sum to 1, so the clamp only guards
// against out-of-range inputs.
func QualityScore(completion, polish, safety float64) float64 {
	s := 0.6*completion + 0.3*polish + 0.1*safety
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
