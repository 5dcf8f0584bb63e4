package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/led"
)

// LEDRequest sets an LED directly. The activity manager takes over again
// at the next change of card state.
type LEDRequest struct {
	Body struct {
		Name    string `json:"name" example:"activity" doc:"Logical LED name"`
		On      bool   `json:"on" example:"true" doc:"Whether the LED should be lit"`
		Pattern string `json:"pattern,omitempty" enum:"solid,blink" example:"solid" doc:"Optional pattern"`
	}
}

// LEDListResponse lists the LEDs on this board.
type LEDListResponse struct {
	Body struct {
		Available []string `json:"available" doc:"Logical LED names"`
	}
}

func (s *Server) registerLEDRoutes() {
	if s.options.LEDController == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}
	ctrl := s.options.LEDController

	huma.Register(s.api, huma.Operation{
		OperationID: "set-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Set LED",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		if err := ctrl.Set(input.Body.Name, input.Body.On, led.Pattern(input.Body.Pattern)); err != nil {
			return nil, huma.Error400BadRequest("Failed to set LED", err)
		}
		return nil, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-leds",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "List LEDs",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*LEDListResponse, error) {
		resp := &LEDListResponse{}
		resp.Body.Available = ctrl.Available()
		return resp, nil
	})
}
