// Package generate produces step artifacts through a routed model backend,
// with result caching and bounded retries.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cascadeai/orchestrator/internal/adapter/model"
	"github.com/cascadeai/orchestrator/internal/cache"
	"github.com/cascadeai/orchestrator/internal/domain"
	"github.com/cascadeai/orchestrator/internal/retry"
)

const DefaultCacheTTL = 15 * time.Minute

// Input identifies one generation attempt.
type Input struct {
	Step    domain.Step
	Profile domain.ModelProfile
	Context []string // retrieved reference snippets; empty means unaugmented
	Fix     string   // reflection fix from a previous failed attempt
}

// Generator caches artifacts by input fingerprint and retries transient model
// failures before giving up with a step-level error.
type Generator struct {
	backend  model.Backend
	cache    *cache.Cache
	cacheTTL time.Duration
	retry    retry.Config
}

// New creates a generator. A nil cache disables caching.
func New(backend model.Backend, store *cache.Cache, cacheTTL time.Duration, retryCfg retry.Config) *Generator {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Generator{backend: backend, cache: store, cacheTTL: cacheTTL, retry: retryCfg}
}

// Generate returns the artifact for in, from cache when possible. A cache hit
// costs nothing and never touches the model. Persistent model failure is
// reported as domain.ErrModelCallFailed so the caller can escalate to a
// fallback profile instead of failing the run.
func (g *Generator) Generate(ctx context.Context, in Input) (*domain.Artifact, error) {
	key := Fingerprint(in)

	if g.cache != nil {
		if content, ok := g.cache.Get(key); ok {
			return &domain.Artifact{
				Content:   content,
				Model:     in.Profile.Name,
				Cost:      0,
				FromCache: true,
			}, nil
		}
	}

	callCtx := ctx
	if in.Profile.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, in.Profile.Timeout)
		defer cancel()
	}

	resp, err := retry.Do(callCtx, g.retry, model.IsTransient, func(ctx context.Context) (*model.GenerateResponse, error) {
		return g.backend.Generate(ctx, &model.GenerateRequest{
			Model:   in.Profile.Name,
			Prompt:  prompt(in),
			Context: in.Context,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("model %s: %v: %w", in.Profile.Name, err, domain.ErrModelCallFailed)
	}

	artifact := &domain.Artifact{
		Content: resp.Text,
		Model:   in.Profile.Name,
		Tokens:  resp.Usage.TotalTokens,
		Cost:    float64(resp.Usage.TotalTokens) / 1000 * in.Profile.Price,
	}

	if g.cache != nil {
		g.cache.Put(key, artifact.Content, g.cacheTTL)
	}
	return artifact, nil
}

// Fingerprint computes the normalized cache key for an input. Two inputs that
// differ only in whitespace or letter case of the step description collide on
// purpose.
func Fingerprint(in Input) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(strings.Join(strings.Fields(in.Step.Description), " ")),
		in.Profile.Name,
		strings.Join(in.Context, "\x1f"),
		strings.TrimSpace(in.Fix),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func prompt(in Input) string {
	if in.Fix == "" {
		return in.Step.Description
	}
	log.Printf("INFO: regenerating step %d with fix applied", in.Step.Ordinal)
	return in.Step.Description + "\n\nApply this fix to the previous attempt: " + in.Fix
}
