// Package event provides a pub-sub event bus through which the coordinator
// announces cycle outcomes and state changes to downstream consumers.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
//   - [CycleCompletedEvent] ("cycle.completed"): after every cycle
//   - [EntitiesChangedEvent] ("entities.changed"): the minimal changed entity keys
//   - [IntervalChangedEvent] ("interval.changed"): the polling interval moved
//   - [BatchDispatchedEvent] ("batch.dispatched"): a priority refresh batch was taken
//   - [RegistryReloadedEvent] ("registry.reloaded"): the dog registry file changed
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeEntitiesChanged, func(e event.Event) {
//	    changed := e.(event.EntitiesChangedEvent)
//	    notify(changed.Entities)
//	})
//
// Handlers run synchronously on the publishing goroutine, so they should
// return quickly. A panicking handler is logged and does not stop delivery
// to the remaining handlers.
package event
