package logger

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// TraceHandler stamps records with the trace and span of the context they are
// logged under.
type TraceHandler struct {
	slog.Handler
}

func (h TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return TraceHandler{h.Handler.WithAttrs(attrs)}
}

func (h TraceHandler) WithGroup(name string) slog.Handler {
	return TraceHandler{h.Handler.WithGroup(name)}
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(TraceHandler{slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})})
}

// Setup installs a JSON logger at level as the process default.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	l := New(w, level).With("service", "market-client")
	slog.SetDefault(l)
	return l
}
