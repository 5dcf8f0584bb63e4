package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/api/models"
)

// registerServiceRoutes exposes the allow-listed companion units.
func (s *Server) registerServiceRoutes() {
	svc := s.options.Services
	if svc == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/api/services",
		Summary:     "Companion Units",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ServiceListResponse, error) {
		resp := &models.ServiceListResponse{}
		resp.Body.Units = svc.Units()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/services/{unit}",
		Summary:     "Unit Status",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *models.ServicePath) (*models.ServiceStatusResponse, error) {
		if !svc.Allowed(input.Unit) {
			return nil, huma.Error404NotFound("unit not managed by audiocard")
		}
		st, err := svc.Status(ctx, input.Unit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get unit status", err)
		}
		return &models.ServiceStatusResponse{
			Body: models.ServiceStatus{Unit: st.Unit, ActiveState: st.ActiveState, SubState: st.SubState},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/services/{unit}/restart",
		Summary:     "Restart Unit",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *models.ServicePath) (*models.ServiceActionResponse, error) {
		if !svc.Allowed(input.Unit) {
			return nil, huma.Error404NotFound("unit not managed by audiocard")
		}
		result, err := svc.Restart(ctx, input.Unit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart unit", err)
		}
		s.logger.Info("Companion unit restarted", "unit", input.Unit, "result", result)
		return &models.ServiceActionResponse{
			Body: models.ServiceAction{Unit: input.Unit, Action: "restart", Result: result},
		}, nil
	})
}
