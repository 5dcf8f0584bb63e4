package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/api/models"
	"github.com/smazurov/audiocard/internal/metrics"
)

// registerMetricsRoutes exposes the cached metric values as JSON. The
// Prometheus text format is served separately at /metrics.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Snapshot",
		Description: "Clock lock count, per-link activity, jack and power counters",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.MetricsResponse, error) {
		return &models.MetricsResponse{Body: metrics.Current()}, nil
	})
}
