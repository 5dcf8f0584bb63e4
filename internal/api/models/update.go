package models

import "github.com/smazurov/audiocard/internal/updater"

// UpdateCheckResponse reports the latest release.
type UpdateCheckResponse struct {
	Body updater.UpdateInfo
}

// UpdateStatusResponse reports the updater state.
type UpdateStatusResponse struct {
	Body updater.Status
}

// UpdateActionResponse acknowledges apply and rollback.
type UpdateActionResponse struct {
	Body struct {
		Message string `json:"message" example:"Update applied, restarting..." doc:"Status message"`
	}
}
