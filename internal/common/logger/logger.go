package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

// Logger writes one JSON object per line: timestamp, level, service, action,
// hostname, request_id and the caller's fields.
type Logger struct {
	service string
	base    *slog.Logger
}

func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout, levelFromEnv())
}

func NewWithWriter(service string, w io.Writer, level slog.Level) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{
		service: service,
		base:    slog.New(h).With("service", service, "hostname", hostname()),
	}
}

// Nop discards everything; tests use it.
func Nop() *Logger {
	return NewWithWriter("nop", io.Discard, slog.LevelError+1)
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{service: l.service, base: l.base.With(attrs(fields)...)}
}

func (l *Logger) Service() string { return l.service }

func (l *Logger) Info(action string, fields map[string]any) {
	l.log(context.Background(), slog.LevelInfo, action, fields, nil)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.log(context.Background(), slog.LevelDebug, action, fields, nil)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.log(context.Background(), slog.LevelWarn, action, fields, nil)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(context.Background(), slog.LevelError, action, fields, err)
}

// InfoCtx and ErrorCtx pick up the request id stored by WithRequestID.
func (l *Logger) InfoCtx(ctx context.Context, action string, fields map[string]any) {
	l.log(ctx, slog.LevelInfo, action, fields, nil)
}

func (l *Logger) ErrorCtx(ctx context.Context, action string, err error, fields map[string]any) {
	l.log(ctx, slog.LevelError, action, fields, err)
}

func (l *Logger) log(ctx context.Context, level slog.Level, action string, fields map[string]any, err error) {
	if !l.base.Enabled(ctx, level) {
		return
	}
	args := make([]any, 0, len(fields)*2+6)
	args = append(args, "action", action, "request_id", RequestID(ctx))
	args = append(args, attrs(fields)...)
	if err != nil {
		args = append(args, slog.Group("error", "msg", err.Error(), "type", fmt.Sprintf("%T", err)))
	}
	l.base.Log(ctx, level, action, args...)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func attrs(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func hostname() string { h, _ := os.Hostname(); return h }
