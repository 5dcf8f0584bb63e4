package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/audiocard/internal/api/models"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Entries from the in-memory ring buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		resp := &models.LogsResponse{}
		resp.Body.Entries = []models.LogEntry{}

		buffer := logging.GetBuffer()
		if buffer == nil {
			return resp, nil
		}
		for _, e := range buffer.ReadAll() {
			if input.Module != "" && e.Module != input.Module {
				continue
			}
			resp.Body.Entries = append(resp.Body.Entries, models.LogEntry{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		if input.Limit > 0 && len(resp.Body.Entries) > input.Limit {
			resp.Body.Entries = resp.Body.Entries[len(resp.Body.Entries)-input.Limit:]
		}
		resp.Body.Count = len(resp.Body.Entries)
		return resp, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Sends the buffered history, then streams new entries. Clients dedupe on seq.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// subscribe first so nothing logged during the replay is lost
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var lastSeq uint64
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, e := range buffer.ReadAll() {
				if err := send.Data(events.LogEntryEvent{
					Seq:        e.Seq,
					Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				}); err != nil {
					return
				}
				lastSeq = e.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if entry, ok := ev.(events.LogEntryEvent); ok && entry.Seq <= lastSeq {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
