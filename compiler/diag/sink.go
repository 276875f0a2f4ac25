package diag

import (
	"context"
	"go/token"
	"log/slog"
)

// Sink delivers diagnostics to the operator.
type Sink interface {
	Report(ctx context.Context, scope string, s Set)
	Logger() *slog.Logger
}

// SlogSink is a Sink backed by a slog.Logger.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink returns a sink writing to l. A nil logger uses slog.Default.
func NewSlogSink(l *slog.Logger) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{log: l}
}

// Logger returns the underlying logger.
func (s *SlogSink) Logger() *slog.Logger { return s.log }

// Report logs every message of set scoped to the given declaration.
func (s *SlogSink) Report(ctx context.Context, scope string, set Set) {
	for _, m := range set.msgs {
		attrs := []slog.Attr{slog.String("decl", scope)}
		if m.Pos.IsValid() {
			attrs = append(attrs, slog.String("pos", m.Pos.String()))
		}
		s.log.LogAttrs(ctx, m.Level.slog(), m.Text, attrs...)
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Discard is a Sink that drops everything.
var Discard Sink = NewSlogSink(slog.New(slog.DiscardHandler))

// Info is a helper for single informational messages.
func Info(pos token.Position, text string) Set {
	return Of(Message{Level: LevelInfo, Pos: pos, Text: text})
}
