// Package logstream follows growing log files and fans line events out
// to subscribers. Watches survive file rotation and truncation; a
// rotated file is reopened transparently and the subscriber is told,
// not disconnected.
package logstream

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/craftops/craftwatch/internal/logging"
)

// EventType classifies stream events.
type EventType string

const (
	EventInitial     EventType = "initial"     // recent tail content at subscribe time
	EventLine        EventType = "line"        // one new log line
	EventRotation    EventType = "rotation"    // file replaced or truncated, follower reopened
	EventReconnected EventType = "reconnected" // follower recovered from a read failure
	EventKeepalive   EventType = "keepalive"   // idle heartbeat
	EventTimeout     EventType = "timeout"     // startup-mode session cap reached
	EventError       EventType = "error"       // follower failure detail
)

// Event is one item of a log subscription stream.
type Event struct {
	Type      EventType `json:"type" example:"line" doc:"Event kind"`
	Line      string    `json:"line,omitempty" doc:"Log content, for initial and line events"`
	Message   string    `json:"message,omitempty" doc:"Detail for rotation, error and timeout events"`
	Timestamp time.Time `json:"timestamp" doc:"Event time"`
}

// Options tune the streamer. Zero values fall back to defaults.
type Options struct {
	RotationInterval  time.Duration // rotation check cadence, default 5s
	PollInterval      time.Duration // read fallback when fsnotify is quiet, default 1s
	KeepaliveInterval time.Duration // idle heartbeat, default 30s
	StartupKeepalive  time.Duration // heartbeat in startup mode, default 5s
	StartupCap        time.Duration // startup-mode session lifetime, default 300s
	InitialTailBytes  int64         // tail window for the initial event, default 4096
	SubscriberBuffer  int           // per-subscriber channel depth, default 256
}

func (o Options) withDefaults() Options {
	if o.RotationInterval <= 0 {
		o.RotationInterval = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = 30 * time.Second
	}
	if o.StartupKeepalive <= 0 {
		o.StartupKeepalive = 5 * time.Second
	}
	if o.StartupCap <= 0 {
		o.StartupCap = 300 * time.Second
	}
	if o.InitialTailBytes <= 0 {
		o.InitialTailBytes = 4096
	}
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = 256
	}
	return o
}

// subscriber is one consumer of a watch. Slow consumers drop events
// rather than stall the follower.
type subscriber struct {
	ch      chan Event
	startup bool

	mu       sync.Mutex
	lastSent time.Time
}

func (sub *subscriber) deliver(ev Event) {
	select {
	case sub.ch <- ev:
		sub.mu.Lock()
		sub.lastSent = time.Now()
		sub.mu.Unlock()
	default:
	}
}

func (sub *subscriber) idleSince() time.Time {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lastSent
}

// watch is the shared follower state for one path.
type watch struct {
	path string

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	stop chan struct{}
	done chan struct{}
}

// broadcast sends an event to every subscriber of the watch.
func (w *watch) broadcast(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for sub := range w.subs {
		sub.deliver(ev)
	}
}

// Streamer is the per-path watch registry.
type Streamer struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
}

// NewStreamer creates an empty registry.
func NewStreamer(opts Options) *Streamer {
	return &Streamer{
		opts:    opts.withDefaults(),
		logger:  logging.GetLogger("logstream"),
		watches: make(map[string]*watch),
	}
}

// Subscribe attaches to the watch for path, creating the follower on
// first use. The returned channel closes when ctx is cancelled or, in
// startup mode, when the session cap elapses. Cancelling the last
// subscriber tears the whole watch down.
func (s *Streamer) Subscribe(ctx context.Context, path string, startupMode bool) <-chan Event {
	sub := &subscriber{
		ch:       make(chan Event, s.opts.SubscriberBuffer),
		startup:  startupMode,
		lastSent: time.Now(),
	}

	if tail := readTail(path, s.opts.InitialTailBytes); tail != "" {
		sub.ch <- Event{Type: EventInitial, Line: tail, Timestamp: time.Now()}
	}

	s.mu.Lock()
	w, ok := s.watches[path]
	if !ok {
		w = &watch{
			path: path,
			subs: make(map[*subscriber]struct{}),
			stop: make(chan struct{}),
			done: make(chan struct{}),
		}
		s.watches[path] = w
		go s.runFollower(w)
	}
	w.mu.Lock()
	w.subs[sub] = struct{}{}
	w.mu.Unlock()
	s.mu.Unlock()

	go s.tendSubscriber(ctx, w, sub)
	return sub.ch
}

// tendSubscriber owns one subscription's lifetime: keepalives while
// idle, the startup-mode cap, and teardown on cancellation.
func (s *Streamer) tendSubscriber(ctx context.Context, w *watch, sub *subscriber) {
	keepalive := s.opts.KeepaliveInterval
	if sub.startup {
		keepalive = s.opts.StartupKeepalive
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	var capCh <-chan time.Time
	if sub.startup {
		capTimer := time.NewTimer(s.opts.StartupCap)
		defer capTimer.Stop()
		capCh = capTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.unsubscribe(w, sub)
			return
		case <-capCh:
			sub.deliver(Event{
				Type:      EventTimeout,
				Message:   "startup log session reached its time limit",
				Timestamp: time.Now(),
			})
			s.unsubscribe(w, sub)
			return
		case <-ticker.C:
			if time.Since(sub.idleSince()) >= keepalive {
				sub.deliver(Event{Type: EventKeepalive, Timestamp: time.Now()})
			}
		}
	}
}

// unsubscribe removes the subscriber and, when it was the last one,
// stops the follower and drops the watch entry.
func (s *Streamer) unsubscribe(w *watch, sub *subscriber) {
	s.mu.Lock()
	w.mu.Lock()
	if _, ok := w.subs[sub]; !ok {
		w.mu.Unlock()
		s.mu.Unlock()
		return
	}
	delete(w.subs, sub)
	close(sub.ch)
	last := len(w.subs) == 0
	w.mu.Unlock()
	if last {
		delete(s.watches, w.path)
	}
	s.mu.Unlock()

	if last {
		close(w.stop)
		<-w.done
		s.logger.Debug("Log watch torn down", "path", w.path)
	}
}

// ActiveWatches reports how many paths currently have followers.
func (s *Streamer) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// readTail returns up to maxBytes from the end of the file, trimmed to
// whole lines.
func readTail(path string, maxBytes int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := stat.Size() - maxBytes
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, stat.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}

	content := string(buf)
	if offset > 0 {
		// Drop the partial first line that the byte window cut.
		if idx := strings.IndexByte(content, '\n'); idx >= 0 {
			content = content[idx+1:]
		}
	}
	return strings.TrimRight(content, "\n")
}
