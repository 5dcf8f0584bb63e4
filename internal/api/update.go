package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/api/models"
	"github.com/smazurov/audiocard/internal/updater"
)

// UpdateService replaces the running binary with a newer release.
type UpdateService interface {
	Enabled() bool
	DisabledReason() string
	Check(ctx context.Context) (*updater.UpdateInfo, error)
	Apply(ctx context.Context) error
	Rollback(ctx context.Context) error
	Status() updater.Status
}

func (s *Server) registerUpdateRoutes() {
	svc := s.options.Updater
	if svc == nil {
		return
	}

	disabled := func() error {
		if svc.Enabled() {
			return nil
		}
		return huma.Error503ServiceUnavailable("Update service disabled: " + svc.DisabledReason())
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update",
		Summary:     "Update Status",
		Description: "Get the current update state and backup availability",
		Tags:        []string{"update"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		if err := disabled(); err != nil {
			return nil, err
		}
		return &models.UpdateStatusResponse{Body: svc.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodPost,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Description: "Check if a newer release is available without downloading",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
		if err := disabled(); err != nil {
			return nil, err
		}
		info, err := svc.Check(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{Body: *info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update/apply",
		Summary:     "Apply Update",
		Description: "Download the latest release, replace the binary and restart",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := disabled(); err != nil {
			return nil, err
		}
		if err := svc.Apply(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		resp := &models.UpdateActionResponse{}
		resp.Body.Message = "Update applied, restarting..."
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Rollback Update",
		Description: "Restore the previous binary and restart",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateActionResponse, error) {
		if err := disabled(); err != nil {
			return nil, err
		}
		if err := svc.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		resp := &models.UpdateActionResponse{}
		resp.Body.Message = "Rollback complete, restarting..."
		return resp, nil
	})
}

func mapUpdateError(err error) error {
	switch updater.CodeOf(err) {
	case updater.CodeInvalidState:
		return huma.Error409Conflict(err.Error())
	case updater.CodeNoUpdate:
		return huma.Error400BadRequest(err.Error())
	case updater.CodeNotFound, updater.CodeNoBackup:
		return huma.Error404NotFound(err.Error())
	case updater.CodeDisabled:
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
