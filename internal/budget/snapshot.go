// Package budget accounts for how much of each dog's entity capacity is in
// use and turns that into the saturation signal fed to the polling
// controller.
package budget

import (
	"math"
	"time"
)

// Snapshot is one dog's entity budget at a point in time.
type Snapshot struct {
	DogID             string    `json:"dog_id"`
	Profile           string    `json:"profile"`
	Capacity          int       `json:"capacity"`
	BaseAllocation    int       `json:"base_allocation"`
	DynamicAllocation int       `json:"dynamic_allocation"`
	Requested         []string  `json:"requested,omitempty"`
	Denied            []string  `json:"denied,omitempty"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// TotalAllocated is base plus dynamic allocation.
func (s Snapshot) TotalAllocated() int {
	return s.BaseAllocation + s.DynamicAllocation
}

// Remaining is the unused capacity, never negative.
func (s Snapshot) Remaining() int {
	return max(s.Capacity-s.TotalAllocated(), 0)
}

// Saturation is TotalAllocated/Capacity clamped to [0, 1]; 0 when the
// capacity is not positive.
func (s Snapshot) Saturation() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	ratio := float64(s.TotalAllocated()) / float64(s.Capacity)
	return math.Min(1, math.Max(0, ratio))
}

// Allocate builds a Snapshot by granting requested entities in order while
// capacity remains after the base allocation. Whatever does not fit is
// recorded as denied.
func Allocate(dogID, profile string, capacity, base int, requested []string, at time.Time) Snapshot {
	s := Snapshot{
		DogID:          dogID,
		Profile:        profile,
		Capacity:       capacity,
		BaseAllocation: base,
		Requested:      append([]string(nil), requested...),
		RecordedAt:     at,
	}
	free := capacity - base
	for _, r := range requested {
		if free > 0 {
			s.DynamicAllocation++
			free--
			continue
		}
		s.Denied = append(s.Denied, r)
	}
	return s
}

// Summary aggregates a set of snapshots.
type Summary struct {
	ActiveDogs         int     `json:"active_dogs"`
	TotalCapacity      int     `json:"total_capacity"`
	TotalAllocated     int     `json:"total_allocated"`
	TotalRemaining     int     `json:"total_remaining"`
	DeniedRequests     int     `json:"denied_requests"`
	AverageUtilization float64 `json:"average_utilization"`
	PeakUtilization    float64 `json:"peak_utilization"`
}

// Summarize aggregates snapshots. Utilizations are percentages rounded to
// one decimal. An empty input yields the zero Summary.
func Summarize(snapshots []Snapshot) Summary {
	if len(snapshots) == 0 {
		return Summary{}
	}

	var s Summary
	var sumSat, peak float64
	for _, snap := range snapshots {
		s.TotalCapacity += snap.Capacity
		s.TotalAllocated += snap.TotalAllocated()
		s.TotalRemaining += snap.Remaining()
		s.DeniedRequests += len(snap.Denied)
		sat := snap.Saturation()
		sumSat += sat
		peak = math.Max(peak, sat)
	}
	s.ActiveDogs = len(snapshots)
	s.AverageUtilization = roundPercent(sumSat / float64(len(snapshots)))
	s.PeakUtilization = roundPercent(peak)
	return s
}

func roundPercent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}
