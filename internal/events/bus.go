package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish broadcasts an event to all subscribers of its type.
// Usage: bus.Publish(ServerStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so each known
	// event type goes through the generic Publish separately.
	switch e := ev.(type) {
	case ServerStateEvent:
		event.Publish(b.dispatcher, e)
	case StartupPhaseEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case RconStateEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects
// which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StartupPhaseEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ServerStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StartupPhaseEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RconStateEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
