package updater

import (
	"time"
)

// State is where the service is in the check, install, restart cycle.
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

// UpdateInfo is the result of a release check.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version" example:"0.4.1"`
	LatestVersion   string    `json:"latest_version" example:"0.5.0"`
	UpdateAvailable bool      `json:"update_available"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero"`
	AssetSize       int       `json:"asset_size,omitempty" doc:"Size of the release asset in bytes"`
}

// Status is a snapshot for GET /api/update.
type Status struct {
	State           State      `json:"state" example:"idle"`
	CurrentVersion  string     `json:"current_version"`
	TargetVersion   string     `json:"target_version,omitempty"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
	Error           string     `json:"error,omitempty"`
	BackupAvailable bool       `json:"backup_available"`
	BackupVersion   string     `json:"backup_version,omitempty"`
}

// Options configures NewService.
type Options struct {
	// Repository is the GitHub owner/name slug releases are read from.
	Repository string
	Prerelease bool
	// BackupDir holds the previous binary. Defaults to $XDG_CACHE_HOME/audiocard/backup.
	BackupDir string
	// Restart runs after a new binary is in place. The daemon exits so
	// systemd starts the new one.
	Restart func()
}
