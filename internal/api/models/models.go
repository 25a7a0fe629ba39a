// Package models holds the request and response bodies of the HTTP
// API.
package models

import (
	"github.com/craftops/craftwatch/internal/supervisor"
	"github.com/craftops/craftwatch/internal/updater"
)

// HealthResponse reports API liveness.
type HealthResponse struct {
	Body HealthData
}

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message,omitempty" doc:"Optional detail"`
}

// VersionResponse reports build metadata.
type VersionResponse struct {
	Body VersionData
}

// VersionData is the version payload.
type VersionData struct {
	Version   string `json:"version" example:"1.4.0" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

// ServerActionResponse reports the outcome of start, stop and restart.
type ServerActionResponse struct {
	Body ServerActionData
}

// ServerActionData is the lifecycle action payload.
type ServerActionData struct {
	Success bool   `json:"success" doc:"Whether the action took effect"`
	Message string `json:"message" doc:"Human-readable outcome"`
	PID     int32  `json:"pid,omitempty" doc:"Server process id, after start"`
}

// ServerStatusResponse wraps the supervisor status snapshot.
type ServerStatusResponse struct {
	Body supervisor.StatusSnapshot
}

// RconCommandInput is the console command request.
type RconCommandInput struct {
	Body struct {
		Command string `json:"command" minLength:"1" example:"list" doc:"Console command to execute"`
	}
}

// RconCommandResponse is the console command result.
type RconCommandResponse struct {
	Body RconCommandData
}

// RconCommandData carries the normalized command outcome.
type RconCommandData struct {
	Success  bool   `json:"success" doc:"Whether the command took effect"`
	Response string `json:"response,omitempty" doc:"Server reply, color codes stripped"`
	Quirk    bool   `json:"quirk,omitempty" doc:"Server replied with an error-shaped line but still acted"`
	Error    string `json:"error,omitempty" doc:"Failure detail"`
}

// RconStatusResponse reports RCON connectivity.
type RconStatusResponse struct {
	Body RconStatusData
}

// RconStatusData is the RCON connectivity payload.
type RconStatusData struct {
	Configured bool   `json:"configured" doc:"Whether server.properties enables RCON"`
	Connected  bool   `json:"connected" doc:"Whether a session is currently authenticated"`
	Addr       string `json:"addr,omitempty" example:"localhost:25575" doc:"Endpoint address"`
	Players    int    `json:"players,omitempty" doc:"Players online, when reachable"`
	MaxPlayers int    `json:"max_players,omitempty" doc:"Player capacity, when reachable"`
	Error      string `json:"error,omitempty" doc:"Last failure detail"`
}

// UpdateInfoResponse wraps the update check result.
type UpdateInfoResponse struct {
	Body updater.UpdateInfo
}

// UpdateStatusResponse wraps the updater state.
type UpdateStatusResponse struct {
	Body updater.Status
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Body MessageData
}

// MessageData is the acknowledgement payload.
type MessageData struct {
	Message string `json:"message" doc:"Human-readable outcome"`
}
