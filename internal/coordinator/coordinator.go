// Package coordinator runs the polling loop: it drives cycles on the
// adaptive interval, dispatches priority refresh batches, diffs every
// snapshot against the previous one and announces what changed.
package coordinator

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pawcontrol/pawsync/internal/batch"
	"github.com/pawcontrol/pawsync/internal/budget"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/diff"
	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/event"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
	"github.com/pawcontrol/pawsync/internal/logging"
	"github.com/pawcontrol/pawsync/internal/metrics"
)

// UrgentPriority is the refresh priority at or above which a batch is
// dispatched immediately instead of waiting until it is due.
const UrgentPriority = 10

// Registry is the coordinator's view of the tracked dogs.
type Registry interface {
	DogIDs() []string
	EmptyPayload(dogID string) jsonvalue.Object
	Budgets(at time.Time) []budget.Snapshot
}

// Runner executes one cycle. *cycle.Orchestrator implements it.
type Runner interface {
	Execute(ctx context.Context, dogIDs []string, empty cycle.EmptyPayloadFunc) (cycle.Snapshot, cycle.RuntimeCycleInfo, error)
}

// FetchHealth reports upstream call health, e.g. *resilience.Executor.
type FetchHealth interface {
	OpenBreakers() int
	FailingKeys() []string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrNop(l) }
}

// WithBus sets the event bus. Without one, events are not published.
func WithBus(b *event.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithLedger replaces the budget ledger.
func WithLedger(l *budget.Ledger) Option {
	return func(c *Coordinator) { c.ledger = l }
}

// WithFetchHealth adds upstream health to the operational snapshot.
func WithFetchHealth(h FetchHealth) Option {
	return func(c *Coordinator) { c.health = h }
}

// WithOptimize enables batch size optimization after every cycle.
func WithOptimize(enabled bool) Option {
	return func(c *Coordinator) { c.optimize = enabled }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the diff tracker, the refresh queue and the budget
// ledger. Cycles are serialized; the query methods are safe for concurrent
// use.
type Coordinator struct {
	registry  Registry
	runner    Runner
	collector *metrics.Collector
	batches   *batch.Manager
	ledger    *budget.Ledger
	bus       *event.Bus
	health    FetchHealth
	optimize  bool
	logger    *logging.Logger
	now       func() time.Time

	wake chan struct{}

	// cycleMu serializes cycles.
	cycleMu sync.Mutex

	mu          sync.RWMutex
	tracker     *diff.Tracker
	lastInfo    *cycle.RuntimeCycleInfo
	lastChanged []string
	lastSummary diff.Summary
	lastOpt     batch.Optimization
}

// New creates a Coordinator.
func New(registry Registry, runner Runner, collector *metrics.Collector, batches *batch.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:  registry,
		runner:    runner,
		collector: collector,
		batches:   batches,
		logger:    logging.NopLogger(),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("coordinator")
	if c.ledger == nil {
		c.ledger = budget.NewLedger(budget.Config{}, budget.Callbacks{}, c.logger)
	}
	c.tracker = diff.NewTracker(c.logger)
	return c
}

// Run polls until ctx is done. The first full cycle starts immediately;
// later ones follow the controller's interval. Refresh batches run in
// between when due.
func (c *Coordinator) Run(ctx context.Context) error {
	cycleTimer := time.NewTimer(0)
	defer cycleTimer.Stop()
	batchTimer := time.NewTimer(time.Hour)
	batchTimer.Stop()
	defer batchTimer.Stop()

	c.logger.Info("polling loop started", "interval_ms", c.collector.Interval().Milliseconds())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("polling loop stopped")
			return nil

		case <-cycleTimer.C:
			_, _, _ = c.RunCycle(ctx)
			cycleTimer.Reset(c.collector.Interval())

		case <-c.wake:
		case <-batchTimer.C:
		}

		// A non-positive batch size never dispatches; queued dogs wait for
		// the next full cycle.
		if ctx.Err() != nil || c.batches.MaxBatchSize() <= 0 {
			continue
		}
		if c.batches.ShouldBatchNow() || c.hasUrgent() {
			_, _, _ = c.RunBatch(ctx)
		}
		if c.batches.HasPending() {
			batchTimer.Reset(max(time.Until(c.batches.NextBatchTime()), 0))
		}
	}
}

func (c *Coordinator) hasUrgent() bool {
	for _, p := range c.batches.PendingWithPriorities() {
		if p >= UrgentPriority {
			return true
		}
	}
	return false
}

// RequestRefresh queues dogID for a priority refresh and wakes the loop.
// Unknown dogs are rejected.
func (c *Coordinator) RequestRefresh(dogID string, priority int) error {
	if !slices.Contains(c.registry.DogIDs(), dogID) {
		return errors.NewNotFoundError("dog", dogID)
	}
	c.batches.Add(dogID, priority)
	c.collector.SetBatchState(c.batches.PendingCount(), c.batches.MaxBatchSize())
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// RunCycle polls every tracked dog once.
func (c *Coordinator) RunCycle(ctx context.Context) (diff.CoordinatorDiff, cycle.RuntimeCycleInfo, error) {
	ids := c.registry.DogIDs()
	d, info, err := c.runCycle(ctx, ids, false)
	if err == nil {
		for _, id := range ids {
			c.batches.Remove(id)
		}
	}
	return d, info, err
}

// RunBatch polls the next refresh batch. An empty queue is a no-op.
func (c *Coordinator) RunBatch(ctx context.Context) (diff.CoordinatorDiff, cycle.RuntimeCycleInfo, error) {
	ids := c.batches.Next()
	if len(ids) == 0 {
		return diff.CoordinatorDiff{}, cycle.RuntimeCycleInfo{}, nil
	}
	c.collector.ObserveBatch()
	c.logger.Debug("refresh batch dispatched", "dogs", len(ids))

	c.mu.RLock()
	opt := c.lastOpt
	c.mu.RUnlock()
	c.publish(event.NewBatchDispatchedEvent(ids, opt))

	return c.runCycle(ctx, ids, true)
}

func (c *Coordinator) runCycle(ctx context.Context, ids []string, partial bool) (diff.CoordinatorDiff, cycle.RuntimeCycleInfo, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	previousInterval := c.collector.Interval()
	started := c.now()

	snap, info, err := c.runner.Execute(ctx, ids, c.registry.EmptyPayload)
	if err != nil {
		info, err = c.handleFailure(ctx, info, started, previousInterval, partial, err)
		return diff.CoordinatorDiff{}, info, err
	}

	merged := c.merge(snap)

	c.mu.Lock()
	d := c.tracker.Update(merged)
	changed := c.tracker.ChangedEntities(&d, "", "")
	c.lastInfo = &info
	c.lastChanged = changed
	c.lastSummary = d.Summary()
	c.mu.Unlock()

	c.recordBudgets()
	c.collector.ObserveDogErrors(info.Errors)
	c.collector.ObserveChanges(len(d.ChangedDogs()), len(changed))
	c.afterCycle()

	log := c.logger.WithCycle(info.CycleID)
	log.Info("cycle complete",
		"partial", partial,
		"dogs", info.DogCount,
		"errors", info.Errors,
		"changed_entities", len(changed),
		"duration_ms", info.Duration.Milliseconds(),
		"next_interval_ms", info.NewInterval.Milliseconds(),
	)

	c.publish(event.NewCycleCompletedEvent(info, partial, nil))
	if diff.ShouldNotifyEntities(d, "", "") {
		c.publish(event.NewEntitiesChangedEvent(info.CycleID, changed, d))
	}
	if info.NewInterval != previousInterval {
		c.publish(event.NewIntervalChangedEvent(previousInterval, info.NewInterval))
	}
	return d, info, nil
}

// handleFailure records a cycle that produced no data. Cancellation and an
// empty registry are returned untouched; an all-failed cycle is fed to the
// controller as a total failure so the interval backs off.
func (c *Coordinator) handleFailure(ctx context.Context, info cycle.RuntimeCycleInfo, started time.Time, previousInterval time.Duration, partial bool, err error) (cycle.RuntimeCycleInfo, error) {
	if ctx.Err() != nil || errors.Is(err, errors.ErrNoDogs) {
		c.logger.Debug("cycle skipped", "reason", err)
		return info, err
	}

	info.NewInterval = c.collector.NextInterval(c.now().Sub(started), false, 1.0)
	c.collector.ObserveDogErrors(info.Errors)

	c.mu.Lock()
	c.lastInfo = &info
	c.lastChanged = nil
	c.lastSummary = diff.Summary{}
	c.mu.Unlock()

	c.afterCycle()
	c.logger.WithCycle(info.CycleID).Error("cycle failed",
		"partial", partial,
		"dogs", info.DogCount,
		"error", err,
		"next_interval_ms", info.NewInterval.Milliseconds(),
	)

	c.publish(event.NewCycleCompletedEvent(info, partial, err))
	if info.NewInterval != previousInterval {
		c.publish(event.NewIntervalChangedEvent(previousInterval, info.NewInterval))
	}
	return info, err
}

// merge builds the snapshot to diff: every tracked dog's fresh payload,
// or its previous payload when it was not polled or failed this cycle.
// Dogs no longer tracked drop out.
func (c *Coordinator) merge(fresh cycle.Snapshot) cycle.Snapshot {
	c.mu.RLock()
	previous := c.tracker.Previous()
	c.mu.RUnlock()

	merged := make(cycle.Snapshot, len(fresh))
	for _, id := range c.registry.DogIDs() {
		if p, ok := fresh[id]; ok {
			merged[id] = p
		} else if p, ok := previous[id]; ok {
			merged[id] = p
		}
	}
	return merged
}

func (c *Coordinator) recordBudgets() {
	snaps := c.registry.Budgets(c.now())
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		c.ledger.Record(s)
		ids = append(ids, s.DogID)
	}
	c.ledger.Retain(ids)
	c.collector.UpdateSaturation(c.ledger.Saturation())
}

// afterCycle sizes the refresh queue to its backlog and exports its state.
func (c *Coordinator) afterCycle() {
	if c.optimize {
		opt := c.batches.Optimize()
		c.mu.Lock()
		c.lastOpt = opt
		c.mu.Unlock()
		if opt.Changed() {
			c.logger.Info("batch size adjusted",
				"old_size", opt.OldSize,
				"new_size", opt.NewSize,
				"load", opt.Load,
				"recommendation", opt.Recommendation,
			)
		}
	}
	c.collector.SetBatchState(c.batches.PendingCount(), c.batches.MaxBatchSize())
}

func (c *Coordinator) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// ChangedEntities returns the entity keys changed by the last successful
// cycle.
func (c *Coordinator) ChangedEntities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lastChanged)
}

// Snapshot returns a deep copy of the current merged snapshot.
func (c *Coordinator) Snapshot() cycle.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracker.Previous().Clone()
}

// LastCycle returns the last cycle's info, if any cycle ran.
func (c *Coordinator) LastCycle() (cycle.RuntimeCycleInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastInfo == nil {
		return cycle.RuntimeCycleInfo{}, false
	}
	return *c.lastInfo, true
}

// OperationalSnapshot combines controller, budget, batch and fetch health.
func (c *Coordinator) OperationalSnapshot() metrics.OperationalSnapshot {
	s := metrics.OperationalSnapshot{
		GeneratedAt: c.now(),
		Dogs:        len(c.registry.DogIDs()),
		Polling:     c.collector.Diagnostics(),
		Budget:      c.ledger.Summary(),
		Batch:       c.batches.Stats(),
	}

	c.mu.RLock()
	if c.lastInfo != nil {
		info := *c.lastInfo
		s.LastCycle = &info
	}
	s.LastChanges = c.lastSummary
	c.mu.RUnlock()

	if c.health != nil {
		s.OpenBreakers = c.health.OpenBreakers()
		s.FailingKeys = c.health.FailingKeys()
	}
	return s
}
