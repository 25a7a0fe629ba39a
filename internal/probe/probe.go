// Package probe implements the startup readiness probe: a status query
// against the game port that reports whether the server is accepting
// client connections and how many players it holds.
package probe

import (
	"context"
	"time"
)

// Status is the probe result. Absence of a result (an error) means
// "unknown", never "down": the caller decides what to make of it.
type Status struct {
	Online      bool
	Players     int
	MaxPlayers  int
	PlayerNames []string
	Version     string
	Latency     time.Duration
}

// Prober answers whether the supervised server is ready for traffic.
// Implementations must honor the context deadline.
type Prober interface {
	Probe(ctx context.Context) (*Status, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) (*Status, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) (*Status, error) {
	return f(ctx)
}
