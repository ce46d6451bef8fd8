package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pawcontrol/pawsync/internal/batch"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/diff"
	"github.com/pawcontrol/pawsync/internal/logging"
)

func TestBus_PublishTypedEvents(t *testing.T) {
	bus := NewBus(nil)

	var got []Event
	bus.SubscribeAll(func(e Event) { got = append(got, e) })

	bus.Publish(NewCycleCompletedEvent(cycle.RuntimeCycleInfo{CycleID: "c1", DogCount: 2}, false, nil))
	bus.Publish(NewEntitiesChangedEvent("c1", []string{"rex.gps"}, diff.CoordinatorDiff{}))
	bus.Publish(NewIntervalChangedEvent(time.Second, 500*time.Millisecond))
	bus.Publish(NewBatchDispatchedEvent([]string{"rex"}, batch.Optimization{OldSize: 15, NewSize: 13}))
	bus.Publish(NewRegistryReloadedEvent([]string{"rex"}, errors.New("bad yaml")))

	want := []string{
		TypeCycleCompleted,
		TypeEntitiesChanged,
		TypeIntervalChanged,
		TypeBatchDispatched,
		TypeRegistryReloaded,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, e := range got {
		if e.EventType() != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], e.EventType())
		}
		if e.Timestamp().IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}

	changed, ok := got[1].(EntitiesChangedEvent)
	if !ok {
		t.Fatalf("expected EntitiesChangedEvent, got %T", got[1])
	}
	if changed.CycleID != "c1" || len(changed.Entities) != 1 || changed.Entities[0] != "rex.gps" {
		t.Errorf("unexpected payload: %+v", changed)
	}
}

func TestBus_SpecificHandlersOnly(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	bus.Subscribe(TypeIntervalChanged, func(Event) { calls++ })
	bus.Subscribe(TypeCycleCompleted, func(Event) { t.Error("wrong handler called") })

	bus.Publish(NewIntervalChangedEvent(time.Second, 2*time.Second))
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe(TypeBatchDispatched, func(Event) { order = append(order, "specific") })

	bus.Publish(NewBatchDispatchedEvent(nil, batch.Optimization{}))
	if strings.Join(order, ",") != "specific,wildcard" {
		t.Errorf("unexpected dispatch order %v", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := make(map[string]int)
	id1 := bus.Subscribe("test.event", func(Event) { calls["one"]++ })
	bus.Subscribe("test.event", func(Event) { calls["two"]++ })

	if !bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return false the second time")
	}

	bus.Publish(newBaseEvent("test.event"))
	if calls["one"] != 0 || calls["two"] != 1 {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("event.one", func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if bus.SubscriptionCount() != 2 {
		t.Errorf("expected 2 subscriptions, got %d", bus.SubscriptionCount())
	}
	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicIsLogged(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.New(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe("test.event", func(Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe("test.event", func(Event) { calls++ })

	bus.Publish(newBaseEvent("test.event"))

	if calls != 2 {
		t.Errorf("expected both handlers to run despite panic, got %d", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("test.event", func(Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() { bus.Publish(newBaseEvent("test.event")) })
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("test.event", func(Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", bus.SubscriptionCount())
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus(nil)

	ids := make(map[string]bool)
	for range 1000 {
		id := bus.Subscribe("test.event", func(Event) {})
		if ids[id] {
			t.Fatalf("duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}
