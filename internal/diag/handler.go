package diag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Handler wraps another slog.Handler, pushing a formatted copy of each
// record into a Ring before delegating, so the app's normal logging
// setup (stdout/file text handler) gains diagnostics capture for free.
type Handler struct {
	next slog.Handler
	ring *Ring
}

// Wrap returns a Handler that captures into ring and forwards every
// record to next unchanged.
func Wrap(next slog.Handler, ring *Ring) *Handler {
	return &Handler{next: next, ring: ring}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.ring.Push(formatRecord(r))
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), ring: h.ring}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), ring: h.ring}
}

func formatRecord(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", r.Time.Format("15:04:05.000"), r.Level.String(), r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}
