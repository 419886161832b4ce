package common

import (
	"context"
	"io"
	"log/slog"
)

// CustomHandler wraps a base slog.Handler the same way the original
// relay's main.go does: it exists so call sites can attach a stable
// "component" tag (gateway/streamer) without every log call repeating
// it, and so future cross-cutting concerns (sampling, redaction) have
// one place to live.
type CustomHandler struct {
	slog.Handler
	Component string
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.Component != "" {
		r.AddAttrs(slog.String("component", h.Component))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{Handler: h.Handler.WithAttrs(attrs), Component: h.Component}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{Handler: h.Handler.WithGroup(name), Component: h.Component}
}

// InitLogger wires slog.Default() to a text handler at Info (or Debug
// when verbose is set) level, decorated by CustomHandler, mirroring
// main.go's setup in the teacher repo.
func InitLogger(w io.Writer, component string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(&CustomHandler{Handler: base, Component: component})
	slog.SetDefault(logger)
}
