package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// DecodeScore strictly decodes a model reply into a scalar in [0,1]. Anything
// that is not a single JSON number in range yields domain.ErrParse so callers
// can substitute their documented default instead of best-guessing.
func DecodeScore(raw string) (float64, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	var v float64
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("score %q: %w", truncate(raw, 60), domain.ErrParse)
	}
	if dec.More() {
		return 0, fmt.Errorf("trailing content after score: %w", domain.ErrParse)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("score %v out of [0,1]: %w", v, domain.ErrParse)
	}
	return v, nil
}

// DecodeMetrics strictly decodes a flat JSON object of metric name -> number.
func DecodeMetrics(raw string) (map[string]float64, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	var v map[string]float64
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("metrics %q: %w", truncate(raw, 60), domain.ErrParse)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after metrics: %w", domain.ErrParse)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("empty metrics object: %w", domain.ErrParse)
	}
	return v, nil
}

// RemediationList is the schema for reflector replies.
type RemediationList struct {
	Fixes []Remediation `json:"fixes"`
}

// Remediation is one ranked fix proposal.
type Remediation struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// DecodeRemediations strictly decodes a reflector reply.
func DecodeRemediations(raw string) (*RemediationList, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	var v RemediationList
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("remediations %q: %w", truncate(raw, 60), domain.ErrParse)
	}
	if len(v.Fixes) == 0 {
		return nil, fmt.Errorf("no fixes proposed: %w", domain.ErrParse)
	}
	for _, f := range v.Fixes {
		if f.Description == "" || f.Confidence < 0 || f.Confidence > 1 {
			return nil, fmt.Errorf("malformed fix entry: %w", domain.ErrParse)
		}
	}
	return &v, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
