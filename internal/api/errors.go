package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/audioerr"
)

// toHTTPError maps the audio error taxonomy onto HTTP statuses.
func toHTTPError(err error) error {
	msg := string(audioerr.CodeOf(err))
	switch audioerr.CodeOf(err) {
	case audioerr.ErrClockUnsupported:
		return huma.Error422UnprocessableEntity(msg, err)
	case audioerr.ErrClockBusy, audioerr.ErrInvalidState:
		return huma.Error409Conflict(msg, err)
	case audioerr.ErrUnknownLink:
		return huma.Error404NotFound(msg, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return huma.Error503ServiceUnavailable("request cancelled", err)
	}
	if msg == "" {
		msg = "internal error"
	}
	return huma.Error500InternalServerError(msg, err)
}
