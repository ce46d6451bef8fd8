package jsonvalue

import (
	"fmt"
	"slices"
)

// Snapshot maps a dog id to that dog's payload for one polling cycle.
// The payload is keyed by module name.
type Snapshot map[string]Object

// IDs returns the snapshot's dog ids in sorted order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for id, payload := range s {
		out[id] = payload.Clone()
	}
	return out
}

// SnapshotFromAny converts a decoded document of the shape
// {dog_id: {module: ...}} into a Snapshot.
func SnapshotFromAny(x any) (Snapshot, error) {
	root, err := ObjectFromAny(x)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(root))
	for id, v := range root {
		payload, ok := v.AsObject()
		if !ok {
			return nil, fmt.Errorf("dog %q: expected object payload, got %s", id, v.Kind())
		}
		snap[id] = payload
	}
	return snap, nil
}

// Any converts the snapshot into plain Go maps, e.g. for encoding.
func (s Snapshot) Any() map[string]any {
	out := make(map[string]any, len(s))
	for id, payload := range s {
		out[id] = payload.Any()
	}
	return out
}
