// Package registry loads the set of polled dogs from a YAML file, selects
// the ones this instance tracks and keeps them current as the file changes.
package registry

import (
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pawcontrol/pawsync/internal/budget"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
	"github.com/pawcontrol/pawsync/internal/logging"
)

// Option configures a Registry.
type Option func(*Registry)

// WithSelector restricts the tracked dogs.
func WithSelector(s *Selector) Option {
	return func(r *Registry) { r.selector = s }
}

// WithCapacity resolves the entity capacity of dogs that do not set one.
func WithCapacity(fn func(profile string) int) Option {
	return func(r *Registry) { r.capacity = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = logging.OrNop(l) }
}

// Registry is the current set of tracked dogs. It implements
// cycle.Registry and is safe for concurrent use.
type Registry struct {
	path     string
	selector *Selector
	capacity func(profile string) int
	logger   *logging.Logger

	mu   sync.RWMutex
	dogs map[string]cycle.DogConfig
	ids  []string
}

var _ cycle.Registry = (*Registry)(nil)

// New creates an empty Registry backed by path. Call Load to read it.
func New(path string, opts ...Option) *Registry {
	r := &Registry{
		path:   path,
		logger: logging.NopLogger(),
		dogs:   make(map[string]cycle.DogConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("registry")
	return r
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// Load reads and applies the registry file. On error the current dogs are
// kept.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.NewRegistryError("read registry", err).WithPath(r.path)
	}
	entries, err := Parse(data)
	if err != nil {
		var re *errors.RegistryError
		if errors.As(err, &re) {
			re.WithPath(r.path)
		}
		return err
	}
	r.Replace(entries)
	return nil
}

// Replace swaps in entries, keeping only the selected dogs.
func (r *Registry) Replace(entries []Entry) {
	dogs := make(map[string]cycle.DogConfig, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !r.selector.Match(e.ID) {
			continue
		}
		dogs[e.ID] = e.Config(r.capacity)
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)

	r.mu.Lock()
	r.dogs = dogs
	r.ids = ids
	r.mu.Unlock()

	r.logger.Info("registry loaded", "dogs", len(ids), "skipped", len(entries)-len(ids))
}

// Lookup implements cycle.Registry.
func (r *Registry) Lookup(dogID string) (cycle.DogConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.dogs[dogID]
	if !ok {
		return cycle.DogConfig{}, errors.NewNotFoundError("dog", dogID)
	}
	return cfg, nil
}

// DogIDs returns the tracked dog ids, sorted.
func (r *Registry) DogIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}

// Len returns the number of tracked dogs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// EmptyPayload is the base payload module results are merged into.
func (r *Registry) EmptyPayload(dogID string) jsonvalue.Object {
	r.mu.RLock()
	cfg, ok := r.dogs[dogID]
	r.mu.RUnlock()

	payload := jsonvalue.Object{"dog_id": jsonvalue.String(dogID)}
	if ok && cfg.Name != "" {
		payload["dog_name"] = jsonvalue.String(cfg.Name)
	}
	return payload
}

// Budgets allocates every tracked dog's requested entities against its
// capacity.
func (r *Registry) Budgets(at time.Time) []budget.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]budget.Snapshot, 0, len(r.ids))
	for _, id := range r.ids {
		cfg := r.dogs[id]
		out = append(out, budget.Allocate(cfg.ID, cfg.Profile, cfg.Capacity, cfg.BaseAllocation, cfg.RequestedEntities, at))
	}
	return out
}
