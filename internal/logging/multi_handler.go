package logging

import (
	"context"
	"log/slog"
)

// multiHandler fans a record out to every sink (stdout, journal, ring
// buffer). A record is delivered to each sink that accepts its level;
// sink errors are swallowed so one failing destination cannot silence
// the others.
type multiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler combines handlers into a single slog.Handler.
func NewMultiHandler(sinks ...slog.Handler) slog.Handler {
	return &multiHandler{sinks: sinks}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range m.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, s := range m.sinks {
		if s.Enabled(ctx, r.Level) {
			_ = s.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.fork(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.fork(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (m *multiHandler) fork(wrap func(slog.Handler) slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, len(m.sinks))
	for i, s := range m.sinks {
		sinks[i] = wrap(s)
	}
	return &multiHandler{sinks: sinks}
}
