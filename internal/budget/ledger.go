package budget

import (
	"slices"
	"strings"
	"sync"

	"github.com/pawcontrol/pawsync/internal/logging"
)

// Config holds ledger thresholds.
type Config struct {
	// WarningThreshold is the per-dog saturation at or above which the
	// ledger warns. 0 disables warnings.
	WarningThreshold float64
}

// Callbacks are invoked by Record.
type Callbacks struct {
	// OnSaturated is called when a dog reaches the warning threshold.
	OnSaturated func(s Snapshot)
	// OnDenied is called when a snapshot carries denied requests.
	OnDenied func(s Snapshot)
}

// Ledger keeps the latest budget snapshot per dog. It is safe for
// concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	cfg       Config
	callbacks Callbacks
	logger    *logging.Logger
	latest    map[string]Snapshot
}

// NewLedger creates an empty ledger.
func NewLedger(cfg Config, callbacks Callbacks, logger *logging.Logger) *Ledger {
	return &Ledger{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logging.OrNop(logger).WithComponent("budget"),
		latest:    make(map[string]Snapshot),
	}
}

// Record stores s as the latest snapshot for its dog and fires callbacks.
func (l *Ledger) Record(s Snapshot) {
	l.mu.Lock()
	l.latest[s.DogID] = s
	l.mu.Unlock()

	if len(s.Denied) > 0 {
		l.logger.Warn("entity requests denied",
			"dog_id", s.DogID,
			"profile", s.Profile,
			"denied", strings.Join(s.Denied, ","),
			"capacity", s.Capacity,
		)
		if l.callbacks.OnDenied != nil {
			l.callbacks.OnDenied(s)
		}
	}

	if l.cfg.WarningThreshold > 0 && s.Saturation() >= l.cfg.WarningThreshold {
		l.logger.Warn("entity budget saturated",
			"dog_id", s.DogID,
			"saturation", s.Saturation(),
			"threshold", l.cfg.WarningThreshold,
		)
		if l.callbacks.OnSaturated != nil {
			l.callbacks.OnSaturated(s)
		}
	}
}

// Forget drops the snapshot of a dog that is no longer tracked.
func (l *Ledger) Forget(dogID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.latest, dogID)
}

// Retain drops every dog not in ids.
func (l *Ledger) Retain(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.latest {
		if !slices.Contains(ids, id) {
			delete(l.latest, id)
		}
	}
}

// Snapshots returns the latest snapshots sorted by dog id.
func (l *Ledger) Snapshots() []Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Snapshot, 0, len(l.latest))
	for _, s := range l.latest {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Snapshot) int { return strings.Compare(a.DogID, b.DogID) })
	return out
}

// Summary summarizes the latest snapshots.
func (l *Ledger) Summary() Summary {
	return Summarize(l.Snapshots())
}

// Saturation is the peak per-dog saturation in [0, 1], the value fed to the
// polling controller.
func (l *Ledger) Saturation() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var peak float64
	for _, s := range l.latest {
		peak = max(peak, s.Saturation())
	}
	return peak
}
