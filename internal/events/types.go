package events

// Event type constants for kelindar/event.
const (
	TypeServerState uint32 = iota + 1
	TypeStartupPhase
	TypeLogEntry
	TypeRconState
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ServerStateEvent reports a supervisor lifecycle transition.
type ServerStateEvent struct {
	State     string `json:"state" example:"running" doc:"Lifecycle state"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Server process id, if any"`
	Message   string `json:"message,omitempty" doc:"Human-readable detail"`
	Timestamp string `json:"timestamp" example:"2026-08-28T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ServerStateEvent.
func (e ServerStateEvent) Type() uint32 { return TypeServerState }

// StartupPhaseEvent reports a startup monitor phase transition.
type StartupPhaseEvent struct {
	Phase      string  `json:"phase" example:"ready" doc:"Startup phase"`
	ElapsedSec float64 `json:"elapsed_sec" doc:"Seconds since monitoring started"`
	PhaseSec   float64 `json:"phase_sec" doc:"Seconds spent in the previous phase"`
	Players    int     `json:"players,omitempty" doc:"Players online at readiness"`
	MaxPlayers int     `json:"max_players,omitempty" doc:"Player capacity at readiness"`
	Error      string  `json:"error,omitempty" doc:"Failure detail, if any"`
	Timestamp  string  `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for StartupPhaseEvent.
func (e StartupPhaseEvent) Type() uint32 { return TypeStartupPhase }

// LogEntryEvent carries one application log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// RconStateEvent reports RCON connectivity changes.
type RconStateEvent struct {
	Addr      string `json:"addr" example:"localhost:25575" doc:"RCON endpoint"`
	Connected bool   `json:"connected" doc:"Whether the session is authenticated"`
	Error     string `json:"error,omitempty" doc:"Failure detail, if any"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for RconStateEvent.
func (e RconStateEvent) Type() uint32 { return TypeRconState }
