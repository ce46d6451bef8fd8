package registry

import (
	"context"

	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/fetch"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

// Planner plans one fetch per configured module, bound to a Fetcher.
type Planner struct {
	fetcher fetch.Fetcher
}

var _ cycle.Planner = (*Planner)(nil)

// NewPlanner creates a Planner.
func NewPlanner(f fetch.Fetcher) *Planner {
	return &Planner{fetcher: f}
}

// Plan implements cycle.Planner.
func (p *Planner) Plan(cfg cycle.DogConfig) []cycle.Fetch {
	out := make([]cycle.Fetch, 0, len(cfg.Modules))
	for _, module := range cfg.Modules {
		out = append(out, cycle.Fetch{
			Module: module,
			Do: func(ctx context.Context) (jsonvalue.Value, error) {
				return p.fetcher.Fetch(ctx, cfg.ID, module)
			},
		})
	}
	return out
}
