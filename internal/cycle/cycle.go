// Package cycle runs one polling cycle: it fans out per-dog fetches,
// isolates per-dog failures, assembles the resulting snapshot and asks a
// metrics collaborator for the next polling interval.
package cycle

import (
	"context"
	"time"

	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

// Snapshot maps dog id to payload for one cycle.
type Snapshot = jsonvalue.Snapshot

// DogConfig is the static, read-only configuration of one dog.
type DogConfig struct {
	ID                string
	Name              string
	Profile           string
	Modules           []string
	Capacity          int
	BaseAllocation    int
	RequestedEntities []string
}

// Registry resolves a dog id to its static configuration.
type Registry interface {
	Lookup(dogID string) (DogConfig, error)
}

// FetchFunc fetches one module payload.
type FetchFunc func(ctx context.Context) (jsonvalue.Value, error)

// Fetch is one module fetch planned for a dog.
type Fetch struct {
	Module string
	Do     FetchFunc
}

// Planner decides which module fetches a dog needs.
type Planner interface {
	Plan(cfg DogConfig) []Fetch
}

// Executor runs a fetch with whatever retry and circuit-breaking policy it
// implements. key identifies the call, as "dog/module".
type Executor interface {
	Execute(ctx context.Context, key string, fn FetchFunc) (jsonvalue.Value, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, key string, fn FetchFunc) (jsonvalue.Value, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, key string, fn FetchFunc) (jsonvalue.Value, error) {
	return f(ctx, key, fn)
}

// DirectExecutor runs fetches once with no policy.
var DirectExecutor = ExecutorFunc(func(ctx context.Context, _ string, fn FetchFunc) (jsonvalue.Value, error) {
	return fn(ctx)
})

// MetricsCollector turns a cycle outcome into the next polling interval.
type MetricsCollector interface {
	NextInterval(duration time.Duration, success bool, errorRatio float64) time.Duration
}

// EmptyPayloadFunc returns the base payload a successful dog's module
// results are merged into.
type EmptyPayloadFunc func(dogID string) jsonvalue.Object

// RuntimeCycleInfo summarizes one completed cycle.
type RuntimeCycleInfo struct {
	CycleID     string        `json:"cycle_id"`
	StartedAt   time.Time     `json:"started_at"`
	DogCount    int           `json:"dog_count"`
	Errors      int           `json:"errors"`
	SuccessRate float64       `json:"success_rate"`
	Duration    time.Duration `json:"duration"`
	NewInterval time.Duration `json:"new_interval"`
	ErrorRatio  float64       `json:"error_ratio"`
	Success     bool          `json:"success"`
	FailedDogs  []string      `json:"failed_dogs,omitempty"`
}
