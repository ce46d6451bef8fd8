package diff

import (
	"maps"
	"slices"

	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

// CoordinatorDiff is the change set for a whole polling cycle.
type CoordinatorDiff struct {
	Dogs        map[string]DogDiff
	AddedDogs   []string
	RemovedDogs []string
}

// Summary holds change counts for logs and diagnostics.
type Summary struct {
	AddedDogs      int `json:"added_dogs"`
	RemovedDogs    int `json:"removed_dogs"`
	ChangedDogs    int `json:"changed_dogs"`
	ChangedModules int `json:"changed_modules"`
}

// HasChanges reports whether any dog was added, removed or changed.
func (d CoordinatorDiff) HasChanges() bool {
	if len(d.AddedDogs) > 0 || len(d.RemovedDogs) > 0 {
		return true
	}
	for _, dd := range d.Dogs {
		if dd.HasChanges() {
			return true
		}
	}
	return false
}

// ChangedDogs returns the sorted ids of dogs with any change, including
// added and removed dogs.
func (d CoordinatorDiff) ChangedDogs() []string {
	var out []string
	for id, dd := range d.Dogs {
		if dd.HasChanges() || d.isAddedOrRemoved(id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Summary counts the changes in d.
func (d CoordinatorDiff) Summary() Summary {
	s := Summary{AddedDogs: len(d.AddedDogs), RemovedDogs: len(d.RemovedDogs)}
	for _, id := range d.ChangedDogs() {
		s.ChangedDogs++
		s.ChangedModules += len(d.Dogs[id].ChangedModules())
	}
	return s
}

func (d CoordinatorDiff) isAddedOrRemoved(dogID string) bool {
	_, added := slices.BinarySearch(d.AddedDogs, dogID)
	_, removed := slices.BinarySearch(d.RemovedDogs, dogID)
	return added || removed
}

// ComputeCoordinatorDiff diffs two snapshots. Every dog in either snapshot
// gets a DogDiff; dogs present on only one side are also listed in
// AddedDogs or RemovedDogs.
func ComputeCoordinatorDiff(old, new jsonvalue.Snapshot) CoordinatorDiff {
	d := CoordinatorDiff{Dogs: make(map[string]DogDiff, max(len(old), len(new)))}

	ids := make(map[string]struct{}, len(old)+len(new))
	for id := range old {
		ids[id] = struct{}{}
	}
	for id := range new {
		ids[id] = struct{}{}
	}

	for _, id := range slices.Sorted(maps.Keys(ids)) {
		ov, inOld := old[id]
		nv, inNew := new[id]
		switch {
		case !inOld:
			d.AddedDogs = append(d.AddedDogs, id)
		case !inNew:
			d.RemovedDogs = append(d.RemovedDogs, id)
		}
		d.Dogs[id] = ComputeDogDiff(id, ov, nv)
	}
	return d
}

// ShouldNotifyEntities reports whether downstream entities need a refresh.
// Empty dogID or module means no filter on that dimension.
//
// It is false when nothing changed at all, true when unfiltered and
// anything changed, and always true for a dog that was added or removed.
// A module filter narrows the answer to that module being changed.
func ShouldNotifyEntities(d CoordinatorDiff, dogID, module string) bool {
	if !d.HasChanges() {
		return false
	}
	if dogID == "" && module == "" {
		return true
	}

	if dogID != "" {
		if d.isAddedOrRemoved(dogID) {
			return true
		}
		dd, ok := d.Dogs[dogID]
		if !ok {
			return false
		}
		if module == "" {
			return dd.HasChanges()
		}
		return slices.Contains(dd.ChangedModules(), module)
	}

	for _, dd := range d.Dogs {
		if slices.Contains(dd.ChangedModules(), module) {
			return true
		}
	}
	return false
}
