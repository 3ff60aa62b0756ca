package review

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/cascadeai/orchestrator/internal/adapter/model"
)

const (
	// MaxIterations bounds the reflection loop; it is the pipeline's
	// cancellation mechanism for runs that cannot converge.
	MaxIterations = 5

	// HaltConfidence: a fix proposed at or above this confidence ends the loop.
	HaltConfidence = 0.8
)

// Proposal is the reflector's answer to a validation failure.
type Proposal struct {
	Fix        string
	Confidence float64
	Halt       bool
	Reason     string
}

// Reflector proposes ranked remediations for failed attempts. The caller
// threads the iteration count explicitly; the reflector keeps no hidden state.
type Reflector struct {
	backend model.Backend
	model   string
}

// NewReflector creates a reflector that asks the named model for remediations.
func NewReflector(backend model.Backend, modelName string) *Reflector {
	return &Reflector{backend: backend, model: modelName}
}

// Reflect returns the top-ranked fix for a failure, or halts. Once iteration
// reaches MaxIterations it halts immediately with no new fix. An unusable
// model reply degrades to a generic retry proposal at zero confidence.
func (r *Reflector) Reflect(ctx context.Context, failure, dom string, iteration int) Proposal {
	if iteration >= MaxIterations {
		return Proposal{
			Halt:   true,
			Reason: fmt.Sprintf("reflection budget exhausted after %d iterations", MaxIterations),
		}
	}

	resp, err := r.backend.Generate(ctx, &model.GenerateRequest{
		Model: r.model,
		Prompt: fmt.Sprintf(
			"A %s artifact failed validation: %s\n"+
				"Propose remediations as JSON {\"fixes\":[{\"description\":...,\"confidence\":0..1}]} and nothing else.",
			dom, failure),
	})
	if err != nil {
		log.Printf("WARN: reflector model call failed: %v", err)
		return Proposal{Reason: "remediation unavailable, retrying as-is"}
	}

	list, err := model.DecodeRemediations(resp.Text)
	if err != nil {
		log.Printf("WARN: reflector reply unusable: %v", err)
		return Proposal{Reason: "remediation unparseable, retrying as-is"}
	}

	fixes := append([]model.Remediation(nil), list.Fixes...)
	sort.SliceStable(fixes, func(i, j int) bool { return fixes[i].Confidence > fixes[j].Confidence })

	top := fixes[0]
	return Proposal{
		Fix:        top.Description,
		Confidence: top.Confidence,
		Halt:       top.Confidence >= HaltConfidence,
		Reason:     fmt.Sprintf("top of %d ranked fixes", len(fixes)),
	}
}
