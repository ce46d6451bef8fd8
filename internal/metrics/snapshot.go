package metrics

import (
	"time"

	"github.com/pawcontrol/pawsync/internal/batch"
	"github.com/pawcontrol/pawsync/internal/budget"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/diff"
	"github.com/pawcontrol/pawsync/internal/polling"
)

// OperationalSnapshot is the combined diagnostics view served to operators.
type OperationalSnapshot struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	Dogs         int                     `json:"dogs"`
	Polling      polling.Diagnostics     `json:"polling"`
	Budget       budget.Summary          `json:"budget"`
	Batch        batch.Stats             `json:"batch"`
	LastCycle    *cycle.RuntimeCycleInfo `json:"last_cycle,omitempty"`
	LastChanges  diff.Summary            `json:"last_changes"`
	OpenBreakers int                     `json:"open_breakers"`
	FailingKeys  []string                `json:"failing_keys,omitempty"`
}

// Healthy reports whether the last cycle produced data and no error streak
// is building up.
func (s OperationalSnapshot) Healthy() bool {
	if s.LastCycle != nil && s.LastCycle.DogCount > 0 && s.LastCycle.Errors == s.LastCycle.DogCount {
		return false
	}
	return s.Polling.ErrorStreak < 3
}
