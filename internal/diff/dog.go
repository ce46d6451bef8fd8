package diff

import (
	"maps"
	"slices"

	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

// DogDiff is the change set for one dog: a diff of its module keys plus a
// per-module diff of each module's content.
type DogDiff struct {
	DogID    string
	TopLevel DataDiff
	Modules  map[string]DataDiff
}

// HasChanges reports whether anything about the dog changed.
func (d DogDiff) HasChanges() bool {
	if d.TopLevel.HasChanges() {
		return true
	}
	for _, md := range d.Modules {
		if md.HasChanges() {
			return true
		}
	}
	return false
}

// ChangedModules returns the sorted names of modules that were added,
// removed or whose content changed.
func (d DogDiff) ChangedModules() []string {
	set := make(map[string]struct{})
	for _, k := range d.TopLevel.ChangedKeys() {
		set[k] = struct{}{}
	}
	for name, md := range d.Modules {
		if md.HasChanges() {
			set[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// ComputeDogDiff diffs one dog's old and new payloads.
//
// For every module present on either side: two objects are diffed key by
// key; a module that appeared or disappeared records all of its keys as
// added or removed; any other value that changed records the module name
// itself as modified, and an unchanged non-object records it as unchanged.
func ComputeDogDiff(dogID string, old, new jsonvalue.Object) DogDiff {
	d := DogDiff{
		DogID:    dogID,
		TopLevel: ComputeDataDiff(old, new),
		Modules:  make(map[string]DataDiff, max(len(old), len(new))),
	}

	for name, nv := range new {
		ov, existed := old[name]
		if !existed {
			d.Modules[name] = allAdded(name, nv)
			continue
		}
		d.Modules[name] = moduleDiff(name, ov, nv)
	}
	for name, ov := range old {
		if _, ok := new[name]; !ok {
			d.Modules[name] = allRemoved(name, ov)
		}
	}
	return d
}

func moduleDiff(name string, ov, nv jsonvalue.Value) DataDiff {
	oldObj, oldIsObj := ov.AsObject()
	newObj, newIsObj := nv.AsObject()
	switch {
	case oldIsObj && newIsObj:
		return ComputeDataDiff(oldObj, newObj)
	case jsonvalue.Equal(ov, nv):
		return DataDiff{unchanged: []string{name}}
	default:
		return DataDiff{modified: []string{name}}
	}
}
