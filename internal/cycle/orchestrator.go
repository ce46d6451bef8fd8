package cycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
	"github.com/pawcontrol/pawsync/internal/logging"
)

const defaultMaxConcurrency = 8

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrency bounds how many dogs are fetched at once. n <= 0
// removes the bound.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the cycle id generator, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// Orchestrator executes polling cycles. It holds no per-cycle state and
// may be reused, but cycles are expected to run one at a time.
type Orchestrator struct {
	registry       Registry
	planner        Planner
	executor       Executor
	metrics        MetricsCollector
	maxConcurrency int
	logger         *logging.Logger
	now            func() time.Time
	newID          func() string
}

// New creates an Orchestrator. A nil executor runs fetches directly.
func New(registry Registry, planner Planner, executor Executor, metrics MetricsCollector, opts ...Option) *Orchestrator {
	if executor == nil {
		executor = DirectExecutor
	}
	o := &Orchestrator{
		registry:       registry,
		planner:        planner,
		executor:       executor,
		metrics:        metrics,
		maxConcurrency: defaultMaxConcurrency,
		logger:         logging.NopLogger(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("cycle")
	return o
}

type dogResult struct {
	payload jsonvalue.Object
	err     error
}

// Execute runs one cycle over dogIDs.
//
// Every dog is fetched concurrently; a failing dog is logged, counted and
// left out of the snapshot without affecting the others. Cancellation of
// ctx aborts the cycle. If every dog fails the error wraps
// errors.ErrAllDogsFailed and the last dog error, and the returned info
// carries the counts and duration but no NewInterval.
func (o *Orchestrator) Execute(ctx context.Context, dogIDs []string, empty EmptyPayloadFunc) (Snapshot, RuntimeCycleInfo, error) {
	info := RuntimeCycleInfo{CycleID: o.newID(), StartedAt: o.now()}
	log := o.logger.WithCycle(info.CycleID)

	ids := dedupe(dogIDs)
	if len(ids) == 0 {
		return nil, info, errors.NewCycleError("cycle not started", errors.ErrNoDogs).WithCycleID(info.CycleID)
	}
	if empty == nil {
		empty = func(string) jsonvalue.Object { return nil }
	}

	results := make([]dogResult, len(ids))
	var g errgroup.Group
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			payload, err := o.fetchDog(ctx, id, empty)
			results[i] = dogResult{payload: payload, err: err}
			return nil
		})
	}
	_ = g.Wait()

	info.DogCount = len(ids)
	info.Duration = o.now().Sub(info.StartedAt)

	if err := ctx.Err(); err != nil {
		return nil, info, errors.NewCycleError("cycle canceled", err).WithCycleID(info.CycleID)
	}

	snapshot := make(Snapshot, len(ids))
	var lastErr error
	for i, id := range ids {
		r := results[i]
		if r.err != nil {
			info.Errors++
			info.FailedDogs = append(info.FailedDogs, id)
			lastErr = r.err
			log.Warn("dog fetch failed", "dog_id", id, "error", r.err, "severity", errors.GetSeverity(r.err).String())
			continue
		}
		snapshot[id] = r.payload
	}

	info.ErrorRatio = float64(info.Errors) / float64(info.DogCount)
	info.SuccessRate = float64(info.DogCount-info.Errors) / float64(info.DogCount)
	info.Success = info.Errors == 0

	if info.Errors == info.DogCount {
		log.Error("every dog failed", "dogs", info.DogCount, "error", lastErr)
		return nil, info, errors.NewCycleError("cycle produced no data", errors.Join(errors.ErrAllDogsFailed, lastErr)).
			WithCycleID(info.CycleID).
			WithCounts(info.Errors, info.DogCount)
	}

	if o.metrics != nil {
		info.NewInterval = o.metrics.NextInterval(info.Duration, info.Success, info.ErrorRatio)
	}

	log.Debug("cycle complete",
		"dogs", info.DogCount,
		"errors", info.Errors,
		"duration_ms", info.Duration.Milliseconds(),
		"next_interval_ms", info.NewInterval.Milliseconds(),
	)
	return snapshot, info, nil
}

// fetchDog fetches every planned module of one dog. The first module
// failure cancels the dog's remaining fetches and fails the dog.
func (o *Orchestrator) fetchDog(ctx context.Context, dogID string, empty EmptyPayloadFunc) (jsonvalue.Object, error) {
	cfg, err := o.registry.Lookup(dogID)
	if err != nil {
		return nil, err
	}

	fetches := o.planner.Plan(cfg)
	values := make([]jsonvalue.Value, len(fetches))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fetches {
		g.Go(func() error {
			v, err := o.executor.Execute(gctx, dogID+"/"+f.Module, f.Do)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payload := empty(dogID).Clone()
	if payload == nil {
		payload = make(jsonvalue.Object, len(fetches))
	}
	for i, f := range fetches {
		payload[f.Module] = values[i]
	}
	return payload, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
