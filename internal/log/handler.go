package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/requestid"
)

type passKey struct{}

// WithPass tags ctx with the name of the scheduled pass it runs in
// ("extend", "reconcile").
func WithPass(ctx context.Context, pass string) context.Context {
	return context.WithValue(ctx, passKey{}, pass)
}

// ContextHandler wraps an slog.Handler and copies correlation values
// (request_id, pass) from the context onto each record.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if pass, _ := ctx.Value(passKey{}).(string); pass != "" {
		r.AddAttrs(slog.String("pass", pass))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
