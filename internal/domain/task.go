package domain

import "time"

// Task is the immutable description of one orchestration request. It is fixed
// once a run starts; per-attempt state lives on the run's trace, not here.
type Task struct {
	Description string            `json:"description"`
	Domain      string            `json:"domain"`
	Budget      float64           `json:"budget,omitempty"` // 0 means the configured default ceiling
	Mode        Mode              `json:"mode,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// Step is one unit of task decomposition. Steps are owned by exactly one run
// and processed in ordinal order, since later steps may consume earlier outputs.
type Step struct {
	Ordinal     int    `json:"ordinal"`
	Description string `json:"description"`
}

// ModelProfile describes one model backend available to the router. Profiles
// are loaded at process start and read-only during runs.
type ModelProfile struct {
	Name         string        `json:"name"`
	Price        float64       `json:"price"` // per 1k tokens
	Capabilities []string      `json:"capabilities"`
	Precedence   int           `json:"precedence"` // higher wins the general/premium tier
	Timeout      time.Duration `json:"timeout"`
}

// HasCapability reports whether the profile carries the given capability tag.
func (p ModelProfile) HasCapability(tag string) bool {
	for _, c := range p.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// CapabilityGeneral marks profiles eligible for any domain without a
// specialist requirement.
const CapabilityGeneral = "general"
