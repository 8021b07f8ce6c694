// Package logging builds the process logger: a log/slog front end writing
// through zerolog, either as JSON lines or as a pretty console stream.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
}

// NewLogger returns a slog logger for cfg. Unknown levels fall back to info.
func NewLogger(cfg Config) *slog.Logger {
	logger, _ := NewLeveledLogger(cfg)
	return logger
}

// NewLeveledLogger is NewLogger plus the level variable, so the level can be
// changed at runtime.
func NewLeveledLogger(cfg Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	if parsed, err := ParseLevel(cfg.Level); err == nil {
		level.Set(parsed)
	}

	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zl := zerolog.New(output).Level(zerolog.TraceLevel)
	return slog.New(&zerologHandler{logger: zl, level: level}), level
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
func ParseLevel(raw string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return slog.LevelInfo, nil
	}
	if name == "warning" {
		name = "warn"
	}
	zlevel, err := zerolog.ParseLevel(name)
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	switch zlevel {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return slog.LevelDebug, nil
	case zerolog.InfoLevel:
		return slog.LevelInfo, nil
	case zerolog.WarnLevel:
		return slog.LevelWarn, nil
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
}

type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

// zerologHandler is a slog.Handler that emits records as zerolog events.
type zerologHandler struct {
	logger zerolog.Logger
	level  slog.Leveler
	prefix string
	attrs  []groupedAttr
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(r.Level))
	if event == nil {
		return nil
	}
	if !r.Time.IsZero() {
		event = event.Time(zerolog.TimestampFieldName, r.Time)
	}
	for _, ga := range h.attrs {
		appendAttr(event, ga.prefix, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(event, h.prefix, a)
		return true
	})
	event.Msg(r.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]groupedAttr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, groupedAttr{prefix: h.prefix, attr: a})
	}
	return &next
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func appendAttr(event *zerolog.Event, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key

	switch a.Value.Kind() {
	case slog.KindGroup:
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = key + "."
		}
		for _, member := range a.Value.Group() {
			appendAttr(event, groupPrefix, member)
		}
	case slog.KindString:
		event.Str(key, a.Value.String())
	case slog.KindInt64:
		event.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		event.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		event.Float64(key, a.Value.Float64())
	case slog.KindBool:
		event.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		event.Dur(key, a.Value.Duration())
	case slog.KindTime:
		event.Time(key, a.Value.Time())
	default:
		v := a.Value.Any()
		if err, ok := v.(error); ok {
			event.AnErr(key, err)
			return
		}
		event.Interface(key, v)
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
