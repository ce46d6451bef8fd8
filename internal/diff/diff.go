// Package diff computes minimal change sets between successive polling
// snapshots at three granularities: leaf key, module and dog.
//
// The result of a diff tells the coordinator exactly which (dog, module)
// pairs need downstream refresh so that nothing else is re-rendered.
package diff

import (
	"maps"
	"slices"

	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

// DataDiff partitions the union of keys of two objects into four disjoint
// sets. A DataDiff is immutable; accessors return sorted copies.
type DataDiff struct {
	added     []string
	removed   []string
	modified  []string
	unchanged []string
}

// NewDataDiff builds a DataDiff from explicit key lists. Duplicates are
// dropped. Callers are responsible for keeping the lists disjoint.
func NewDataDiff(added, removed, modified, unchanged []string) DataDiff {
	return DataDiff{
		added:     normalize(added),
		removed:   normalize(removed),
		modified:  normalize(modified),
		unchanged: normalize(unchanged),
	}
}

func normalize(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Added returns keys present only in the new object.
func (d DataDiff) Added() []string { return slices.Clone(d.added) }

// Removed returns keys present only in the old object.
func (d DataDiff) Removed() []string { return slices.Clone(d.removed) }

// Modified returns keys present in both objects with different values.
func (d DataDiff) Modified() []string { return slices.Clone(d.modified) }

// Unchanged returns keys present in both objects with equal values.
func (d DataDiff) Unchanged() []string { return slices.Clone(d.unchanged) }

// HasChanges reports whether any key was added, removed or modified.
func (d DataDiff) HasChanges() bool {
	return len(d.added) > 0 || len(d.removed) > 0 || len(d.modified) > 0
}

// ChangedKeys returns the sorted union of added, removed and modified keys.
func (d DataDiff) ChangedKeys() []string {
	out := make([]string, 0, len(d.added)+len(d.removed)+len(d.modified))
	out = append(out, d.added...)
	out = append(out, d.removed...)
	out = append(out, d.modified...)
	slices.Sort(out)
	return out
}

// IsChanged reports whether key is in one of the changed sets.
func (d DataDiff) IsChanged(key string) bool {
	_, found := slices.BinarySearch(d.added, key)
	if !found {
		_, found = slices.BinarySearch(d.removed, key)
	}
	if !found {
		_, found = slices.BinarySearch(d.modified, key)
	}
	return found
}

// ComputeDataDiff compares two objects key by key. A nil object is treated
// as empty. Values are compared with jsonvalue.Equal.
func ComputeDataDiff(old, new jsonvalue.Object) DataDiff {
	var d DataDiff
	for k, nv := range new {
		ov, ok := old[k]
		switch {
		case !ok:
			d.added = append(d.added, k)
		case jsonvalue.Equal(ov, nv):
			d.unchanged = append(d.unchanged, k)
		default:
			d.modified = append(d.modified, k)
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			d.removed = append(d.removed, k)
		}
	}
	slices.Sort(d.added)
	slices.Sort(d.removed)
	slices.Sort(d.modified)
	slices.Sort(d.unchanged)
	return d
}

// allAdded records every key of v (or the module name itself when v is not
// an object) as added.
func allAdded(module string, v jsonvalue.Value) DataDiff {
	if obj, ok := v.AsObject(); ok {
		return DataDiff{added: slices.Sorted(maps.Keys(obj))}
	}
	return DataDiff{added: []string{module}}
}

func allRemoved(module string, v jsonvalue.Value) DataDiff {
	if obj, ok := v.AsObject(); ok {
		return DataDiff{removed: slices.Sorted(maps.Keys(obj))}
	}
	return DataDiff{removed: []string{module}}
}
