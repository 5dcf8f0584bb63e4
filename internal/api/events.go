package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/events"
)

// cardEventTypes maps SSE event names to payloads.
var cardEventTypes = map[string]any{
	"card-status":   card.Status{},
	"link-state":    events.LinkStateChangedEvent{},
	"clock-state":   events.ClockStateChangedEvent{},
	"jack-state":    events.JackStateChangedEvent{},
	"power-changed": events.CardPowerChangedEvent{},
}

// registerSSERoutes registers the card event stream.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Link, clock, jack and power events. The first message is a card status snapshot.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, cardEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.LinkStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ClockStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.JackStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CardPowerChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if s.card != nil {
			if err := send.Data(s.card.Status()); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
