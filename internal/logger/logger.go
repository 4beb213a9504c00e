package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	Format      string
	Output      io.Writer
}

type Logger struct {
	base *zerolog.Logger
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)

	return &Logger{base: &base}
}

// Nop discards everything. Used where a logger is optional.
func Nop() *Logger {
	base := zerolog.Nop()
	return &Logger{base: &base}
}

func ParseLevel(value string) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(value); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	child := l.base.With().Str("component", component).Logger()
	return &Logger{base: &child}
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if fields, ok := ctx.Value(ctxKey{}).(map[string]any); ok && len(fields) > 0 {
			child := l.base.With().Fields(fields).Logger()
			return &child
		}
	}
	return l.base
}

// WithFields attaches fields to ctx; every later log call made with that
// context includes them, whatever component logger is used.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	merged := make(map[string]any, len(fields))
	if existing, ok := ctx.Value(ctxKey{}).(map[string]any); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, map[string]any{"request_id": requestID})
}

func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.from(ctx).Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.from(ctx).Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string, err error, fields map[string]any) {
	event := l.from(ctx).Warn().Fields(fields)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error, fields map[string]any) {
	event := l.from(ctx).Error().Fields(fields)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
