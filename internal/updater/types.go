package updater

import (
	"context"
	"time"
)

// State is the updater's current step.
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateApplying    State = "applying"
	StateRestarting  State = "restarting"
	StateError       State = "error"
	StateRolledBack  State = "rolled_back"
)

// Service defines the update operations the API exposes.
type Service interface {
	// CheckForUpdate looks for a newer release without downloading.
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)

	// ApplyUpdate downloads and installs the update, then triggers a
	// restart.
	ApplyUpdate(ctx context.Context) error

	// Rollback restores the previously backed-up binary.
	Rollback(ctx context.Context) error

	// GetStatus reports the updater's state and version info.
	GetStatus(ctx context.Context) *Status

	// IsEnabled is false when the binary location is not writable.
	IsEnabled() bool

	// DisabledReason explains a disabled service, empty when enabled.
	DisabledReason() string
}

// UpdateInfo describes an available release.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero"`
	UpdateAvailable bool      `json:"update_available"`
}

// Status is the updater's observable state.
type Status struct {
	State           State      `json:"state"`
	CurrentVersion  string     `json:"current_version"`
	TargetVersion   string     `json:"target_version,omitempty"`
	Error           string     `json:"error,omitempty"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
	BackupAvailable bool       `json:"backup_available"`
	BackupVersion   string     `json:"backup_version,omitempty"`
}

// Options configure the updater service.
type Options struct {
	Repository string // GitHub slug, e.g. "craftops/craftwatch"
	Prerelease bool
}
