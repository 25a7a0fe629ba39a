package logging

import (
	"sync"
	"time"
)

// Entry is a single structured log line kept in the ring buffer.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer is a fixed-capacity circular buffer of log entries. New
// entries overwrite the oldest once the buffer is full.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]Entry, size)}
}

// Write appends an entry, evicting the oldest when full.
func (b *RingBuffer) Write(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// ReadAll returns the buffered entries in chronological order.
func (b *RingBuffer) ReadAll() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	out := make([]Entry, 0, b.count)
	if b.count < len(b.entries) {
		out = append(out, b.entries[:b.count]...)
	} else {
		out = append(out, b.entries[b.head:]...)
		out = append(out, b.entries[:b.head]...)
	}
	return out
}

// Count returns the number of buffered entries.
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
