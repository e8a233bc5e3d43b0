package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")
	ctx := trace.ContextWithSpanContext(context.Background(), spanContext(t))

	logger.InfoContext(ctx, "hello", "job_id", "j1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
	assert.Equal(t, "j1", line["job_id"])
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, ParseLevel("warn"), "text")

	logger.Info("quiet")
	assert.Empty(t, buf.String())

	logger.With("route_id", "r1").Warn("loud")
	assert.Contains(t, buf.String(), "msg=loud")
	assert.Contains(t, buf.String(), "route_id=r1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestDetachTraceContextFrom(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	src := trace.ContextWithSpanContext(context.Background(), spanContext(t))

	ctx := DetachTraceContextFrom(src, base)
	assert.Equal(t, spanContext(t).TraceID(), trace.SpanContextFromContext(ctx).TraceID())
	assert.True(t, trace.SpanContextFromContext(ctx).IsRemote())

	cancel()
	assert.Error(t, ctx.Err(), "cancellation follows the base context")

	plain := DetachTraceContextFrom(context.Background(), base)
	assert.Equal(t, base, plain)
}
