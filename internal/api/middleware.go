package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/audiocard/internal/logging"
)

// requestLevel picks the log level for a finished request. Preflights and
// the SSE streams are chatty and go to debug.
func requestLevel(method string, status int, op *huma.Operation) slog.Level {
	switch {
	case method == "OPTIONS":
		return slog.LevelDebug
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case op != nil && op.Method == "GET" && len(op.Tags) > 0 && op.Tags[0] == "events":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// HTTPLoggingMiddleware logs one line per request on the "http" module.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	logger := logging.GetLogger("http")
	began := time.Now()

	next(ctx)

	u := ctx.URL()
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs,
		slog.String("method", ctx.Method()),
		slog.String("path", u.Path),
		slog.Int("status", ctx.Status()),
		slog.Duration("duration", time.Since(began)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	)
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		attrs = append(attrs, slog.String("operation", op.OperationID))
	}
	if u.RawQuery != "" {
		attrs = append(attrs, slog.String("query", u.RawQuery))
	}

	level := requestLevel(ctx.Method(), ctx.Status(), ctx.Operation())
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
