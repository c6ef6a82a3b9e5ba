package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// SentryHandler wraps an slog.Handler and reports error records to Sentry.
type SentryHandler struct {
	handler slog.Handler
	hub     func(ctx context.Context) *sentry.Hub
	attrs   []slog.Attr
}

func NewSentryHandler(handler slog.Handler) *SentryHandler {
	return &SentryHandler{handler: handler, hub: hubFromContext}
}

func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func (h *SentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle reports Error records carrying an "error" attribute as exceptions;
// the other attributes become event extras.
func (h *SentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		var captured error
		extras := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			extras[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
				captured = err
				return true
			}
			extras[a.Key] = a.Value.Any()
			return true
		})
		if captured != nil {
			h.hub(ctx).WithScope(func(scope *sentry.Scope) {
				scope.SetExtras(extras)
				scope.SetExtra("message", r.Message)
				h.hub(ctx).CaptureException(captured)
			})
		}
	}
	return h.handler.Handle(ctx, r)
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &SentryHandler{handler: h.handler.WithAttrs(attrs), hub: h.hub, attrs: merged}
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	return &SentryHandler{handler: h.handler.WithGroup(name), hub: h.hub, attrs: h.attrs}
}
