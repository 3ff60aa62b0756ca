// Package model abstracts the model backends the pipeline can invoke. Each
// backend is an opaque capability; the router picks one, the generator calls it.
package model

import "context"

// GenerateRequest asks a backend for one artifact.
type GenerateRequest struct {
	Model   string   // profile name, resolved by the gateway
	Prompt  string   // step description, with any reflection fix folded in
	Context []string // retrieved reference snippets, possibly empty
}

// GenerateResponse carries the artifact text and token usage.
type GenerateResponse struct {
	Text  string
	Usage Usage
}

// Usage is the token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Backend is the capability surface of one model backend.
type Backend interface {
	// Generate produces an artifact for the prompt.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Score grades a piece of text and returns a scalar in [0,1].
	Score(ctx context.Context, model, text string) (float64, error)

	// AssessMetrics asks a backend to grade an artifact on named metrics,
	// returning a metric -> value map decoded against a strict schema.
	AssessMetrics(ctx context.Context, model, artifact, domainTag string) (map[string]float64, error)
}

// Ensure Client implements Backend.
var _ Backend = (*Client)(nil)
