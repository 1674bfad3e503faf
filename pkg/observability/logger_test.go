package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_Formats(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Format: LogFormatText, Output: &buf})
		logger.Info("route reordered", "stops", 4)
		assert.Contains(t, buf.String(), "route reordered")
		assert.Contains(t, buf.String(), "stops=4")
	})

	t.Run("json with service", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Format: LogFormatJSON, Output: &buf, Service: "convoy-api", Version: "1.2.0"})
		logger.Info("listening")
		entry := decodeLine(t, &buf)
		assert.Equal(t, "listening", entry["msg"])
		assert.Equal(t, "convoy-api", entry["service"])
		assert.Equal(t, "1.2.0", entry["version"])
	})
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelWarn, Output: &buf})
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: LogFormatJSON, Output: &buf})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOperatorID(ctx, "op-1")
	ctx = WithRouteID(ctx, "route-1")
	ctx = WithOperation(ctx, "reorder_stops")

	logger.With("attempt", 1).InfoContext(ctx, "saved")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "corr-1", entry[CorrelationIDKey])
	assert.Equal(t, "req-1", entry[RequestIDKey])
	assert.Equal(t, "op-1", entry[OperatorIDKey])
	assert.Equal(t, "route-1", entry[RouteIDKey])
	assert.Equal(t, "reorder_stops", entry[OperationKey])
	assert.EqualValues(t, 1, entry["attempt"])
}

func TestNewLogger_NoContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: LogFormatJSON, Output: &buf})
	logger.WithGroup("g").Info("plain", "k", "v")
	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, CorrelationIDKey)
	assert.NotContains(t, entry, RouteIDKey)
}

func TestLogConfigFor(t *testing.T) {
	prod := LogConfigFor("production", "debug", "convoy-worker")
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)
	assert.Equal(t, os.Stdout, prod.Output)
	assert.Equal(t, LogLevelDebug, prod.Level)
	assert.Equal(t, "convoy-worker", prod.Service)

	dev := LogConfigFor("development", "", "convoy")
	assert.Equal(t, LogFormatText, dev.Format)
	assert.False(t, dev.AddSource)
	assert.Nil(t, dev.Output)
	assert.Equal(t, LogLevelInfo, dev.Level)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"DEBUG":   LogLevelDebug,
		" warn ":  LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"info":    LogLevelInfo,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestContextHelpers(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	assert.Empty(t, RouteIDFromContext(context.Background()))

	ctx := WithCorrelationID(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))

	ctx = WithRequestID(context.Background(), "")
	assert.NotEmpty(t, RequestIDFromContext(ctx))
}
