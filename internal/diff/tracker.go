package diff

import (
	"slices"

	"github.com/pawcontrol/pawsync/internal/jsonvalue"
	"github.com/pawcontrol/pawsync/internal/logging"
)

// Tracker remembers the previous snapshot and diffs each new one against it.
//
// A Tracker is owned by a single polling loop and is not safe for
// concurrent Update calls.
type Tracker struct {
	logger   *logging.Logger
	previous jsonvalue.Snapshot
	last     *CoordinatorDiff
	updates  int
}

// NewTracker creates an empty Tracker. A nil logger discards output.
func NewTracker(logger *logging.Logger) *Tracker {
	return &Tracker{logger: logging.OrNop(logger).WithComponent("diff")}
}

// Update diffs next against the previous snapshot, then stores a deep copy
// of next as the new previous snapshot. Later mutation of next by the
// caller cannot affect the following diff.
func (t *Tracker) Update(next jsonvalue.Snapshot) CoordinatorDiff {
	d := ComputeCoordinatorDiff(t.previous, next)
	t.previous = next.Clone()
	if t.previous == nil {
		t.previous = jsonvalue.Snapshot{}
	}
	t.last = &d
	t.updates++

	if d.HasChanges() {
		s := d.Summary()
		t.logger.Info("snapshot changed",
			"update", t.updates,
			"added_dogs", s.AddedDogs,
			"removed_dogs", s.RemovedDogs,
			"changed_dogs", s.ChangedDogs,
			"changed_modules", s.ChangedModules,
		)
	} else {
		t.logger.Debug("snapshot unchanged", "update", t.updates)
	}
	return d
}

// ChangedEntities returns the sorted, minimal set of entity keys that need
// a downstream refresh: "dog.module" for a changed module and the bare dog
// id for a dog that was added or removed. A nil d uses the last diff.
// Empty dogID or module means no filter.
func (t *Tracker) ChangedEntities(d *CoordinatorDiff, dogID, module string) []string {
	if d == nil {
		d = t.last
	}
	if d == nil {
		return nil
	}

	var out []string
	for _, id := range d.ChangedDogs() {
		if dogID != "" && id != dogID {
			continue
		}
		if d.isAddedOrRemoved(id) {
			out = append(out, id)
			continue
		}
		for _, m := range d.Dogs[id].ChangedModules() {
			if module != "" && m != module {
				continue
			}
			out = append(out, id+"."+m)
		}
	}
	slices.Sort(out)
	return out
}

// Previous returns a shallow copy of the stored snapshot: the map is fresh
// but payloads are shared and must not be mutated.
func (t *Tracker) Previous() jsonvalue.Snapshot {
	out := make(jsonvalue.Snapshot, len(t.previous))
	for id, payload := range t.previous {
		out[id] = payload
	}
	return out
}

// LastDiff returns the most recent diff, or nil before the first Update.
func (t *Tracker) LastDiff() *CoordinatorDiff { return t.last }

// UpdateCount returns the number of Update calls since creation or Reset.
func (t *Tracker) UpdateCount() int { return t.updates }

// Reset forgets the previous snapshot and last diff.
func (t *Tracker) Reset() {
	t.previous = nil
	t.last = nil
	t.updates = 0
}
