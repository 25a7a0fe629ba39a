package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StartupPhaseEvent, 1)

	unsub := bus.Subscribe(func(e StartupPhaseEvent) {
		received <- e
	})
	defer unsub()

	event := StartupPhaseEvent{
		Phase:      "ready",
		ElapsedSec: 42.5,
		Players:    3,
		MaxPlayers: 20,
	}
	bus.Publish(event)

	got := <-received
	if got.Phase != event.Phase {
		t.Errorf("Expected phase %s, got %s", event.Phase, got.Phase)
	}
	if got.Players != event.Players {
		t.Errorf("Expected players %d, got %d", event.Players, got.Players)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan ServerStateEvent, 1)
	received2 := make(chan ServerStateEvent, 1)

	unsub1 := bus.Subscribe(func(e ServerStateEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e ServerStateEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(ServerStateEvent{State: "running", PID: 4242})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe(func(_ RconStateEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(RconStateEvent{Addr: "localhost:25575", Connected: true})
	time.Sleep(50 * time.Millisecond)
	unsub()
	bus.Publish(RconStateEvent{Addr: "localhost:25575", Connected: false})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("Expected 1 event after unsubscribe, got %d", count)
	}
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[LogEntryEvent](bus, ch)
	defer unsub()

	bus.Publish(LogEntryEvent{Message: "first"})
	bus.Publish(LogEntryEvent{Message: "second"}) // dropped, channel full
	time.Sleep(50 * time.Millisecond)

	select {
	case got := <-ch:
		if entry, ok := got.(LogEntryEvent); !ok || entry.Message != "first" {
			t.Errorf("Expected first entry, got %#v", got)
		}
	default:
		t.Fatal("Expected one buffered event")
	}
}
