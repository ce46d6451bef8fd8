// Package batch queues dog ids that need an out-of-band refresh and hands
// them out in priority order, a bounded batch at a time.
package batch

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Default manager values.
const (
	defaultForceInterval = 30 * time.Second

	// Optimize bounds and thresholds.
	optimizeHighLoad = 30
	optimizeLowLoad  = 5
	optimizeStepUp   = 5
	optimizeStepDown = 2
	optimizeCeiling  = 25
	optimizeFloor    = 10
)

// farFuture is what NextBatchTime reports when nothing is pending.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Option configures a Manager.
type Option func(*Manager)

// WithForceInterval sets how long pending ids may wait before a partial
// batch is due.
func WithForceInterval(d time.Duration) Option {
	return func(m *Manager) { m.forceInterval = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type pending struct {
	priority int
	seq      uint64
}

// Manager is a priority queue of pending dog ids. All methods are safe for
// concurrent use via a single mutex.
type Manager struct {
	mu            sync.Mutex
	maxBatchSize  int
	forceInterval time.Duration
	now           func() time.Time

	pending    map[string]pending
	seq        uint64
	lastBatch  time.Time
	batches    int
	dispatched int
}

// New creates a Manager that hands out at most maxBatchSize ids per batch.
// A non-positive maxBatchSize yields empty batches.
func New(maxBatchSize int, opts ...Option) *Manager {
	m := &Manager{
		maxBatchSize:  maxBatchSize,
		forceInterval: defaultForceInterval,
		now:           time.Now,
		pending:       make(map[string]pending),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastBatch = m.now()
	return m
}

// Add queues id. If id is already pending it keeps the higher of the two
// priorities and its original position among equal priorities.
func (m *Manager) Add(id string, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pending[id]; ok {
		if priority > p.priority {
			p.priority = priority
			m.pending[id] = p
		}
		return
	}
	m.seq++
	m.pending[id] = pending{priority: priority, seq: m.seq}
}

// Next removes and returns up to MaxBatchSize ids, highest priority first
// and oldest first among equal priorities.
func (m *Manager) Next() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 || m.maxBatchSize <= 0 {
		return []string{}
	}

	ids := m.orderedLocked()
	if len(ids) > m.maxBatchSize {
		ids = ids[:m.maxBatchSize]
	}
	for _, id := range ids {
		delete(m.pending, id)
	}
	m.lastBatch = m.now()
	m.batches++
	m.dispatched += len(ids)
	return ids
}

func (m *Manager) orderedLocked() []string {
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		pa, pb := m.pending[a], m.pending[b]
		if c := cmp.Compare(pb.priority, pa.priority); c != 0 {
			return c
		}
		return cmp.Compare(pa.seq, pb.seq)
	})
	return ids
}

// HasPending reports whether any id is queued.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// PendingCount returns the number of queued ids.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingWithPriorities returns a copy of the queue as id -> priority.
func (m *Manager) PendingWithPriorities() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.pending))
	for id, p := range m.pending {
		out[id] = p.priority
	}
	return out
}

// ShouldBatchNow reports whether a batch is due using the configured force
// interval.
func (m *Manager) ShouldBatchNow() bool {
	return m.ShouldBatchNowWithin(m.forceInterval)
}

// ShouldBatchNowWithin reports whether a batch is due: never when empty,
// always when a full batch is waiting, otherwise once force has elapsed
// since the last batch.
func (m *Manager) ShouldBatchNowWithin(force time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case len(m.pending) == 0:
		return false
	case m.maxBatchSize > 0 && len(m.pending) >= m.maxBatchSize:
		return true
	default:
		return m.now().Sub(m.lastBatch) >= force
	}
}

// Remove drops id from the queue and reports whether it was pending.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; !ok {
		return false
	}
	delete(m.pending, id)
	return true
}

// UpdatePriority sets the priority of a pending id, up or down, and
// reports whether it was pending.
func (m *Manager) UpdatePriority(id string, priority int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return false
	}
	p.priority = priority
	m.pending[id] = p
	return true
}

// NextBatchTime returns when the next batch is due.
func (m *Manager) NextBatchTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case len(m.pending) == 0:
		return farFuture
	case m.maxBatchSize > 0 && len(m.pending) >= m.maxBatchSize:
		return m.now()
	default:
		return m.lastBatch.Add(m.forceInterval)
	}
}

// MaxBatchSize returns the current batch size limit.
func (m *Manager) MaxBatchSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxBatchSize
}

// Optimization describes one Optimize decision.
type Optimization struct {
	OldSize        int    `json:"old_size"`
	NewSize        int    `json:"new_size"`
	Load           int    `json:"load"`
	Recommendation string `json:"recommendation"`
}

// Changed reports whether the batch size was adjusted.
func (o Optimization) Changed() bool { return o.OldSize != o.NewSize }

// Optimize adjusts the batch size to the current backlog: a backlog above
// 30 grows it by 5 up to 25, a backlog below 5 shrinks it by 2 down to 10.
// Sizes already beyond those bounds are left alone.
func (m *Manager) Optimize() Optimization {
	m.mu.Lock()
	defer m.mu.Unlock()

	load := len(m.pending)
	o := Optimization{OldSize: m.maxBatchSize, Load: load, Recommendation: recommendation(load)}

	switch {
	case load > optimizeHighLoad && m.maxBatchSize < optimizeCeiling:
		m.maxBatchSize = min(m.maxBatchSize+optimizeStepUp, optimizeCeiling)
	case load < optimizeLowLoad && m.maxBatchSize > optimizeFloor:
		m.maxBatchSize = max(m.maxBatchSize-optimizeStepDown, optimizeFloor)
	}
	o.NewSize = m.maxBatchSize
	return o
}

func recommendation(load int) string {
	switch {
	case load == 0:
		return "none"
	case load < 5:
		return "low"
	case load <= 15:
		return "normal"
	case load <= 30:
		return "high"
	default:
		return "very-high"
	}
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	Pending          int       `json:"pending"`
	MaxBatchSize     int       `json:"max_batch_size"`
	LastBatch        time.Time `json:"last_batch"`
	SecondsSinceLast float64   `json:"seconds_since_last"`
	TotalBatches     int       `json:"total_batches"`
	TotalDispatched  int       `json:"total_dispatched"`
}

// Stats returns current queue statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Pending:          len(m.pending),
		MaxBatchSize:     m.maxBatchSize,
		LastBatch:        m.lastBatch,
		SecondsSinceLast: m.now().Sub(m.lastBatch).Seconds(),
		TotalBatches:     m.batches,
		TotalDispatched:  m.dispatched,
	}
}
