package supervisor

import "time"

// State is the supervisor's view of the server lifecycle.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateReady    State = "ready"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// StatusSnapshot is one cached status observation. Snapshots are
// immutable once published; callers inside the cache TTL receive the
// same pointer.
type StatusSnapshot struct {
	Running       bool      `json:"running" doc:"Whether the server process exists"`
	State         State     `json:"state" example:"running" doc:"Lifecycle state"`
	PID           int32     `json:"pid,omitempty" doc:"Server process id"`
	UptimeSeconds int64     `json:"uptime_seconds,omitempty" doc:"Seconds since the process started"`
	CPUPercent    float64   `json:"cpu_percent" doc:"Last sampled CPU usage"`
	MemoryMB      float64   `json:"memory_mb" doc:"Last sampled resident memory"`
	Players       int       `json:"players" doc:"Players online, when the probe answered"`
	MaxPlayers    int       `json:"max_players,omitempty" doc:"Player capacity"`
	PlayerNames   []string  `json:"player_names,omitempty" doc:"Online player names"`
	Degraded      bool      `json:"degraded,omitempty" doc:"Process alive but the readiness probe is failing"`
	ObservedAt    time.Time `json:"observed_at" doc:"When this snapshot was taken"`
}
