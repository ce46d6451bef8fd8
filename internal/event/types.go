package event

import (
	"time"

	"github.com/pawcontrol/pawsync/internal/batch"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/diff"
)

// Event types.
const (
	TypeCycleCompleted   = "cycle.completed"
	TypeEntitiesChanged  = "entities.changed"
	TypeIntervalChanged  = "interval.changed"
	TypeBatchDispatched  = "batch.dispatched"
	TypeRegistryReloaded = "registry.reloaded"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns "category.action", e.g. "cycle.completed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Cycle Events
// -----------------------------------------------------------------------------

// CycleCompletedEvent is emitted after every cycle, failed ones included.
type CycleCompletedEvent struct {
	baseEvent
	Info    cycle.RuntimeCycleInfo
	Partial bool  // Only a refresh batch was polled
	Err     error // Set when the cycle produced no data
}

// NewCycleCompletedEvent creates a CycleCompletedEvent.
func NewCycleCompletedEvent(info cycle.RuntimeCycleInfo, partial bool, err error) CycleCompletedEvent {
	return CycleCompletedEvent{
		baseEvent: newBaseEvent(TypeCycleCompleted),
		Info:      info,
		Partial:   partial,
		Err:       err,
	}
}

// EntitiesChangedEvent carries the entity keys whose state changed.
type EntitiesChangedEvent struct {
	baseEvent
	CycleID  string
	Entities []string // "dog.module" keys, or bare dog ids for added and removed dogs
	Diff     diff.CoordinatorDiff
}

// NewEntitiesChangedEvent creates an EntitiesChangedEvent.
func NewEntitiesChangedEvent(cycleID string, entities []string, d diff.CoordinatorDiff) EntitiesChangedEvent {
	return EntitiesChangedEvent{
		baseEvent: newBaseEvent(TypeEntitiesChanged),
		CycleID:   cycleID,
		Entities:  entities,
		Diff:      d,
	}
}

// IntervalChangedEvent is emitted when the controller picks a new interval.
type IntervalChangedEvent struct {
	baseEvent
	Previous time.Duration
	Current  time.Duration
}

// NewIntervalChangedEvent creates an IntervalChangedEvent.
func NewIntervalChangedEvent(previous, current time.Duration) IntervalChangedEvent {
	return IntervalChangedEvent{
		baseEvent: newBaseEvent(TypeIntervalChanged),
		Previous:  previous,
		Current:   current,
	}
}

// -----------------------------------------------------------------------------
// Batch and Registry Events
// -----------------------------------------------------------------------------

// BatchDispatchedEvent is emitted when a priority refresh batch is taken.
type BatchDispatchedEvent struct {
	baseEvent
	DogIDs       []string
	Optimization batch.Optimization
}

// NewBatchDispatchedEvent creates a BatchDispatchedEvent.
func NewBatchDispatchedEvent(dogIDs []string, opt batch.Optimization) BatchDispatchedEvent {
	return BatchDispatchedEvent{
		baseEvent:    newBaseEvent(TypeBatchDispatched),
		DogIDs:       dogIDs,
		Optimization: opt,
	}
}

// RegistryReloadedEvent is emitted after the registry file was reloaded.
type RegistryReloadedEvent struct {
	baseEvent
	DogIDs []string
	Err    error
}

// NewRegistryReloadedEvent creates a RegistryReloadedEvent.
func NewRegistryReloadedEvent(dogIDs []string, err error) RegistryReloadedEvent {
	return RegistryReloadedEvent{
		baseEvent: newBaseEvent(TypeRegistryReloaded),
		DogIDs:    dogIDs,
		Err:       err,
	}
}
