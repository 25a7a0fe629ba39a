// Package startup tracks a freshly launched server through its boot
// phases, from process appearance to the first successful readiness
// probe, and fans the transitions out to subscribers.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/craftops/craftwatch/internal/events"
	"github.com/craftops/craftwatch/internal/logging"
	"github.com/craftops/craftwatch/internal/probe"
)

// Phase is one step of the startup state machine. Phases only advance;
// StopMonitoring resets to PhaseStopped.
type Phase string

const (
	PhaseStopped        Phase = "stopped"
	PhaseStarting       Phase = "starting"
	PhaseProcessStarted Phase = "process_started"
	PhaseRunning        Phase = "running"
	PhaseReady          Phase = "ready"
	PhaseTimeout        Phase = "timeout"
	PhaseFailed         Phase = "failed"
	PhaseError          Phase = "error"
)

// terminal reports whether the phase ends the monitor loop.
func (p Phase) terminal() bool {
	switch p {
	case PhaseReady, PhaseTimeout, PhaseFailed, PhaseError:
		return true
	}
	return false
}

// Transition carries one phase change to subscribers.
type Transition struct {
	Phase        Phase
	Elapsed      time.Duration // since StartMonitoring
	PhaseElapsed time.Duration // since the previous transition
	Players      int
	MaxPlayers   int
	Err          error
}

// Callback receives transitions synchronously. Panics are caught and
// logged so one bad subscriber cannot stop the monitor.
type Callback func(Transition)

// Options configure a monitor. CheckProcess is required; a nil Prober
// makes the probe phase fail by timeout.
type Options struct {
	CheckProcess func() bool
	Prober       probe.Prober
	Bus          *events.Bus

	ProcessInterval time.Duration // default 1s
	ProcessTimeout  time.Duration // default 60s
	ProbeInterval   time.Duration // default 2s
	ProbeWindow     time.Duration // default 300s
	ProbeTimeout    time.Duration // per-probe deadline, default 5s
}

func (o Options) withDefaults() Options {
	if o.ProcessInterval <= 0 {
		o.ProcessInterval = time.Second
	}
	if o.ProcessTimeout <= 0 {
		o.ProcessTimeout = 60 * time.Second
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 2 * time.Second
	}
	if o.ProbeWindow <= 0 {
		o.ProbeWindow = 300 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
	return o
}

// Monitor drives one startup tracking session at a time.
type Monitor struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	startedAt  time.Time
	phaseStart time.Time
	callbacks  []Callback
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewMonitor creates an idle monitor in PhaseStopped.
func NewMonitor(opts Options) *Monitor {
	return &Monitor{
		opts:   opts.withDefaults(),
		logger: logging.GetLogger("startup"),
		phase:  PhaseStopped,
	}
}

// Subscribe registers a callback for every subsequent transition.
func (m *Monitor) Subscribe(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Phase returns the current phase.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// StartMonitoring begins a tracking session. A second call while a
// session is active is a no-op.
func (m *Monitor) StartMonitoring() {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	now := time.Now()
	m.startedAt = now
	m.phaseStart = now
	done := m.done
	m.mu.Unlock()

	m.transition(Transition{Phase: PhaseStarting})

	go func() {
		defer close(done)
		m.run(ctx)
	}()
}

// StopMonitoring cancels any active session and resets to PhaseStopped.
// Safe to call repeatedly.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	m.phase = PhaseStopped
	m.mu.Unlock()
}

// run executes the two polling phases. Any panic becomes PhaseError so
// the host process never crashes on a monitoring bug.
func (m *Monitor) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Startup monitor panic", "panic", r)
			m.transition(Transition{Phase: PhaseError, Err: fmt.Errorf("monitor panic: %v", r)})
		}
	}()

	if !m.waitForProcess(ctx) {
		return
	}

	m.transition(Transition{Phase: PhaseProcessStarted})
	m.transition(Transition{Phase: PhaseRunning})

	m.waitForReady(ctx)
}

// waitForProcess polls for process existence until it appears or the
// process window elapses.
func (m *Monitor) waitForProcess(ctx context.Context) bool {
	deadline := time.Now().Add(m.opts.ProcessTimeout)
	ticker := time.NewTicker(m.opts.ProcessInterval)
	defer ticker.Stop()

	for {
		if m.opts.CheckProcess != nil && m.opts.CheckProcess() {
			return true
		}
		if time.Now().After(deadline) {
			m.transition(Transition{
				Phase: PhaseFailed,
				Err:   fmt.Errorf("process did not appear within %s", m.opts.ProcessTimeout),
			})
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// waitForReady probes until the first success or the probe window
// elapses.
func (m *Monitor) waitForReady(ctx context.Context) {
	deadline := time.Now().Add(m.opts.ProbeWindow)
	ticker := time.NewTicker(m.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		if m.opts.Prober != nil {
			probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
			status, err := m.opts.Prober.Probe(probeCtx)
			cancel()

			if err == nil && status != nil && status.Online {
				m.transition(Transition{
					Phase:      PhaseReady,
					Players:    status.Players,
					MaxPlayers: status.MaxPlayers,
				})
				return
			}
		}
		if time.Now().After(deadline) {
			m.transition(Transition{
				Phase: PhaseTimeout,
				Err:   fmt.Errorf("server not ready within %s", m.opts.ProbeWindow),
			})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// transition advances the phase and notifies subscribers and the bus.
func (m *Monitor) transition(t Transition) {
	m.mu.Lock()
	now := time.Now()
	t.Elapsed = now.Sub(m.startedAt)
	t.PhaseElapsed = now.Sub(m.phaseStart)
	m.phase = t.Phase
	m.phaseStart = now
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.logger.Info("Startup phase", "phase", string(t.Phase), "elapsed", t.Elapsed.Round(time.Millisecond))

	for _, cb := range callbacks {
		m.invoke(cb, t)
	}

	if m.opts.Bus != nil {
		errMsg := ""
		if t.Err != nil {
			errMsg = t.Err.Error()
		}
		m.opts.Bus.Publish(events.StartupPhaseEvent{
			Phase:      string(t.Phase),
			ElapsedSec: t.Elapsed.Seconds(),
			PhaseSec:   t.PhaseElapsed.Seconds(),
			Players:    t.Players,
			MaxPlayers: t.MaxPlayers,
			Error:      errMsg,
			Timestamp:  now.Format(time.RFC3339),
		})
	}
}

// invoke calls one callback with panic isolation.
func (m *Monitor) invoke(cb Callback, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Startup subscriber panic", "phase", string(t.Phase), "panic", r)
		}
	}()
	cb(t)
}
