// Package observability provides structured logging, metrics, health checks
// and request correlation for the convoy binaries.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is a level name as it appears in LOG_LEVEL.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     LogLevel
	Format    LogFormat
	Output    io.Writer // defaults to os.Stderr
	AddSource bool
	// Service and Version are attached to every record when set.
	Service string
	Version string
}

// LogConfigFor returns the logging setup for an APP_ENV value: JSON with
// source locations in production, text elsewhere. An empty level keeps info.
func LogConfigFor(appEnv, level, service string) LogConfig {
	cfg := LogConfig{
		Level:   ParseLogLevel(level),
		Format:  LogFormatText,
		Service: service,
	}
	if appEnv == "production" {
		cfg.Format = LogFormatJSON
		cfg.AddSource = true
		cfg.Output = os.Stdout
	}
	return cfg
}

// ParseLogLevel accepts level names case-insensitively and falls back to info.
func ParseLogLevel(value string) LogLevel {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(value))); l {
	case LogLevelDebug, LogLevelWarn, LogLevelError:
		return l
	case "warning":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger whose records carry the correlation, request,
// operator and route IDs found in the logging context.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	var attrs []slog.Attr
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(contextHandler{Handler: handler})
}

// contextAttrs lists the IDs lifted from the context onto each record.
var contextAttrs = []struct {
	key  string
	from func(context.Context) string
}{
	{CorrelationIDKey, CorrelationIDFromContext},
	{RequestIDKey, RequestIDFromContext},
	{OperatorIDKey, OperatorIDFromContext},
	{RouteIDKey, RouteIDFromContext},
	{OperationKey, OperationFromContext},
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, a := range contextAttrs {
		if v := a.from(ctx); v != "" {
			r.AddAttrs(slog.String(a.key, v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
