package logstream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fastStreamOptions() Options {
	return Options{
		RotationInterval:  20 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		KeepaliveInterval: 50 * time.Millisecond,
		StartupKeepalive:  30 * time.Millisecond,
		StartupCap:        5 * time.Second,
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
}

// collect drains events until want arrives or the deadline passes,
// returning everything seen so far.
func collect(t *testing.T, ch <-chan Event, want EventType) []Event {
	t.Helper()
	var seen []Event
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed while waiting for %s; saw %v", want, seen)
			}
			seen = append(seen, ev)
			if ev.Type == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline; saw %v", want, seen)
		}
	}
}

func TestSubscribe_InitialAndLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendLine(t, path, "old line one")
	appendLine(t, path, "old line two")

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx, path, false)

	initial := collect(t, ch, EventInitial)
	if got := initial[len(initial)-1].Line; got != "old line one\nold line two" {
		t.Errorf("initial tail = %q", got)
	}

	appendLine(t, path, "fresh line")
	events := collect(t, ch, EventLine)
	if got := events[len(events)-1].Line; got != "fresh line" {
		t.Errorf("line event = %q, want fresh line", got)
	}
}

func TestSubscribe_RotationByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.log")
	appendLine(t, path, "before rotation")

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx, path, false)
	collect(t, ch, EventInitial)

	// Rotate: rename the live file away and recreate the path.
	if err := os.Rename(path, filepath.Join(dir, "latest.log.1")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	appendLine(t, path, "after rotation")

	collect(t, ch, EventRotation)

	// Content of the replacement file flows without resubscribing.
	events := collect(t, ch, EventLine)
	found := false
	for _, ev := range events {
		if ev.Type == EventLine && ev.Line == "after rotation" {
			found = true
		}
	}
	if !found {
		appendLine(t, path, "post rotation line")
		events = collect(t, ch, EventLine)
		if events[len(events)-1].Line != "post rotation line" {
			t.Errorf("expected lines from the new file, got %v", events)
		}
	}
}

func TestSubscribe_TruncationDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	for i := 0; i < 100; i++ {
		appendLine(t, path, "padding line to cross the truncation slack threshold")
	}

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx, path, false)
	collect(t, ch, EventInitial)

	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	appendLine(t, path, "fresh start")

	collect(t, ch, EventRotation)
}

func TestSubscribe_LostFileReplayedFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendLine(t, path, "before loss")

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx, path, false)
	collect(t, ch, EventInitial)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	collect(t, ch, EventError)

	// Recreate the path with content already in place. Lines written
	// between the loss and the reopen must still reach subscribers.
	if err := os.WriteFile(path, []byte("first after loss\nsecond after loss\n"), 0o644); err != nil {
		t.Fatalf("recreate: %v", err)
	}

	collect(t, ch, EventReconnected)
	events := collect(t, ch, EventLine)
	if got := events[len(events)-1].Line; got != "first after loss" {
		t.Errorf("first line after recovery = %q, want %q", got, "first after loss")
	}
	events = collect(t, ch, EventLine)
	if got := events[len(events)-1].Line; got != "second after loss" {
		t.Errorf("second line after recovery = %q, want %q", got, "second after loss")
	}
}

func TestSubscribe_KeepaliveWhenIdle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendLine(t, path, "only line")

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx, path, false)
	collect(t, ch, EventKeepalive)
}

func TestSubscribe_StartupCapTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendLine(t, path, "only line")

	opts := fastStreamOptions()
	opts.StartupCap = 80 * time.Millisecond

	s := NewStreamer(opts)
	ch := s.Subscribe(context.Background(), path, true)

	collect(t, ch, EventTimeout)

	// The subscription closes after the timeout event.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after startup timeout")
		}
	}
}

func TestUnsubscribe_TearsDownLastWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendLine(t, path, "only line")

	s := NewStreamer(fastStreamOptions())
	ctx, cancel := context.WithCancel(context.Background())

	first := s.Subscribe(ctx, path, false)
	second := s.Subscribe(ctx, path, false)
	if got := s.ActiveWatches(); got != 1 {
		t.Fatalf("ActiveWatches() = %d, want 1 shared watch", got)
	}

	cancel()
	drain(first)
	drain(second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ActiveWatches() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watch not torn down, ActiveWatches() = %d", s.ActiveWatches())
}

func drain(ch <-chan Event) {
	go func() {
		for range ch {
		}
	}()
}
