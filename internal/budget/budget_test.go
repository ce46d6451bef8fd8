package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func TestSnapshotDerivedValues(t *testing.T) {
	tests := []struct {
		name      string
		snap      Snapshot
		total     int
		remaining int
		sat       float64
	}{
		{"half used", Snapshot{Capacity: 10, BaseAllocation: 3, DynamicAllocation: 2}, 5, 5, 0.5},
		{"over capacity", Snapshot{Capacity: 4, BaseAllocation: 3, DynamicAllocation: 5}, 8, 0, 1},
		{"zero capacity", Snapshot{Capacity: 0, BaseAllocation: 3}, 3, 0, 0},
		{"negative capacity", Snapshot{Capacity: -5, BaseAllocation: 1}, 1, 0, 0},
		{"negative allocation", Snapshot{Capacity: 10, BaseAllocation: -4}, -4, 14, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.TotalAllocated(); got != tt.total {
				t.Errorf("TotalAllocated() = %d, want %d", got, tt.total)
			}
			if got := tt.snap.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
			if got := tt.snap.Saturation(); got != tt.sat {
				t.Errorf("Saturation() = %v, want %v", got, tt.sat)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	s := Allocate("rex", "standard", 6, 4, []string{"gps_map", "walk_timer", "weight"}, at)

	assert.Equal(t, 2, s.DynamicAllocation)
	assert.Equal(t, []string{"weight"}, s.Denied)
	assert.Equal(t, []string{"gps_map", "walk_timer", "weight"}, s.Requested)
	assert.Equal(t, 6, s.TotalAllocated())
	assert.Equal(t, 1.0, s.Saturation())
	assert.Equal(t, at, s.RecordedAt)

	full := Allocate("bella", "basic", 2, 5, []string{"a"}, at)
	assert.Zero(t, full.DynamicAllocation)
	assert.Equal(t, []string{"a"}, full.Denied)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]Snapshot{
		{DogID: "a", Capacity: 10, BaseAllocation: 5},
		{DogID: "b", Capacity: 4, BaseAllocation: 3, DynamicAllocation: 1, Denied: []string{"x", "y"}},
		{DogID: "c", Capacity: 8, BaseAllocation: 2},
	})
	assert.Equal(t, Summary{
		ActiveDogs:         3,
		TotalCapacity:      22,
		TotalAllocated:     11,
		TotalRemaining:     11,
		DeniedRequests:     2,
		AverageUtilization: 58.3,
		PeakUtilization:    100,
	}, s)
}

func TestLedger(t *testing.T) {
	var saturated, denied []string
	l := NewLedger(Config{WarningThreshold: 0.9}, Callbacks{
		OnSaturated: func(s Snapshot) { saturated = append(saturated, s.DogID) },
		OnDenied:    func(s Snapshot) { denied = append(denied, s.DogID) },
	}, nil)

	l.Record(Allocate("rex", "standard", 10, 2, nil, at))
	l.Record(Allocate("bella", "basic", 3, 3, []string{"extra"}, at))
	assert.Equal(t, []string{"bella"}, saturated)
	assert.Equal(t, []string{"bella"}, denied)
	assert.Equal(t, 1.0, l.Saturation())

	// Later snapshots replace earlier ones.
	l.Record(Allocate("bella", "basic", 6, 3, nil, at.Add(time.Minute)))
	snaps := l.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "bella", snaps[0].DogID)
	assert.Equal(t, 0.5, l.Saturation())

	sum := l.Summary()
	assert.Equal(t, 2, sum.ActiveDogs)
	assert.Equal(t, 50.0, sum.PeakUtilization)

	l.Retain([]string{"rex"})
	assert.Len(t, l.Snapshots(), 1)
	l.Forget("rex")
	assert.Zero(t, l.Saturation())
	assert.Equal(t, Summary{}, l.Summary())
}
