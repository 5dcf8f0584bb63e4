package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/api/models"
	"github.com/smazurov/audiocard/internal/dai"
)

func (s *Server) registerCardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/api/card",
		Summary:     "Card Status",
		Description: "Snapshot of power state, shared clock, jack, links and routing pins",
		Tags:        []string{"card"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CardStatusResponse, error) {
		return &models.CardStatusResponse{Body: s.card.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "suspend-card",
		Method:      http.MethodPost,
		Path:        "/api/card/suspend",
		Summary:     "Suspend",
		Description: "Mask the jack interrupt and gate the shared clock",
		Tags:        []string{"card"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(_ context.Context, _ *struct{}) (*models.PowerResponse, error) {
		if err := s.card.Suspend(); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.PowerResponse{Body: models.PowerData{Power: s.card.Status().Power}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-card",
		Method:      http.MethodPost,
		Path:        "/api/card/resume",
		Summary:     "Resume",
		Description: "Wait for the codec to settle, ungate the clock and resync the jack",
		Tags:        []string{"card"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.PowerResponse, error) {
		if err := s.card.Resume(ctx); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.PowerResponse{Body: models.PowerData{Power: s.card.Status().Power}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "poll-jack",
		Method:      http.MethodPost,
		Path:        "/api/jack/poll",
		Summary:     "Poll Jack",
		Description: "Re-read the sense pin and report a change if there is one",
		Tags:        []string{"jack"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(_ context.Context, _ *struct{}) (*models.JackResponse, error) {
		st, err := s.card.PollJack()
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.JackResponse{Body: st}, nil
	})
}

func (s *Server) registerLinkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List Links",
		Tags:        []string{"links"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LinkListResponse, error) {
		resp := &models.LinkListResponse{}
		resp.Body.Links = s.card.Status().Links
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-link",
		Method:      http.MethodGet,
		Path:        "/api/links/{link}",
		Summary:     "Get Link",
		Tags:        []string{"links"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.LinkPath) (*models.LinkResponse, error) {
		for _, l := range s.card.Status().Links {
			if l.Name == input.Link {
				return &models.LinkResponse{Body: l}, nil
			}
		}
		return nil, huma.Error404NotFound("UNKNOWN_LINK")
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "link-hw-params",
		Method:      http.MethodPost,
		Path:        "/api/links/{link}/hw-params",
		Summary:     "Start Stream",
		Description: "Negotiate framing and clocks for a stream at the given rate",
		Tags:        []string{"links"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 500},
	}, func(_ context.Context, input *models.HWParamsRequest) (*models.HWParamsResponse, error) {
		res, err := s.card.HWParams(input.Link, dai.Params{Rate: input.Body.Rate, Channels: input.Body.Channels})
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.HWParamsResponse{
			Body: models.HWParamsData{
				Link:    input.Link,
				Rate:    input.Body.Rate,
				MCLK:    res.MCLK,
				SysClk:  res.SysClk,
				MinMCLK: res.MinMCLK,
				Format:  res.Format.String(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "link-hw-free",
		Method:      http.MethodPost,
		Path:        "/api/links/{link}/hw-free",
		Summary:     "Stop Stream",
		Description: "Release the link's clock reference. Safe to repeat.",
		Tags:        []string{"links"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.LinkPath) (*struct{}, error) {
		if err := s.card.HWFree(input.Link); err != nil {
			return nil, toHTTPError(err)
		}
		return nil, nil
	})
}
