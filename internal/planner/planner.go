// Package planner decomposes a task into an ordered step list. Decomposition
// is deliberately simple and deterministic; the pipeline's complexity lives
// downstream of it.
package planner

import (
	"regexp"
	"strings"

	"github.com/cascadeai/orchestrator/internal/domain"
)

var (
	numberedItem = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*])\s+(.+)$`)
	thenSplit    = regexp.MustCompile(`(?i)\s*(?:;|,?\s+then\s+|,?\s+and then\s+)\s*`)
)

// Planner produces ordered steps from a task description.
type Planner struct{}

// New creates a planner.
func New() *Planner { return &Planner{} }

// Plan splits the description into steps: numbered or bulleted lines win,
// then "then"-separated clauses, and otherwise the whole task is one step.
// Steps keep declaration order; later steps may consume earlier outputs.
func (p *Planner) Plan(task domain.Task) []domain.Step {
	var parts []string

	if matches := numberedItem.FindAllStringSubmatch(task.Description, -1); len(matches) > 1 {
		for _, m := range matches {
			parts = append(parts, m[1])
		}
	} else if clauses := thenSplit.Split(task.Description, -1); len(clauses) > 1 {
		parts = clauses
	} else {
		parts = []string{task.Description}
	}

	steps := make([]domain.Step, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		steps = append(steps, domain.Step{Ordinal: len(steps), Description: part})
	}
	if len(steps) == 0 {
		steps = append(steps, domain.Step{Ordinal: 0, Description: strings.TrimSpace(task.Description)})
	}
	return steps
}
