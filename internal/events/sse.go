package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback subscriptions to a
// channel, for SSE handlers that drive a select loop. Events are dropped
// rather than blocking when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
