package seeder

import (
	"time"

	"github.com/roach88/seeds/internal/script"
)

// Action describes what happened to a script during an invocation.
type Action string

const (
	ActionApplied   Action = "applied"
	ActionCanApply  Action = "can_apply"
	ActionReverted  Action = "reverted"
	ActionCanRevert Action = "can_revert"
)

// Step is one script handled by an invocation.
type Step struct {
	Version     int64         `json:"version"`
	Description string        `json:"description"`
	Kind        script.Kind   `json:"-"`
	Label       string        `json:"label"`
	Action      Action        `json:"action"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Report lists the scripts an invocation handled. When the invocation fails,
// the report still lists every step completed before the failure.
type Report struct {
	RunID     string `json:"run_id"`
	Operation string `json:"operation"`
	DryRun    bool   `json:"dry_run"`
	Steps     []Step `json:"steps"`

	// NothingToRevert is set by Revert when no applied reversible version
	// was found.
	NothingToRevert bool `json:"nothing_to_revert,omitempty"`
}

func (r *Report) add(s script.Script, action Action, elapsed time.Duration) {
	r.Steps = append(r.Steps, Step{
		Version:     s.Version,
		Description: s.Description,
		Kind:        s.Kind,
		Label:       s.Kind.Label(),
		Action:      action,
		Elapsed:     elapsed,
	})
}

// Versions returns the versions of all steps in order.
func (r *Report) Versions() []int64 {
	out := make([]int64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Version
	}
	return out
}
