package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_RegistersGlobalTracerProviderAndShutdownCleanly(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	defer func() { require.NoError(t, shutdown(ctx)) }()

	tp := otel.GetTracerProvider()
	require.NotNil(t, tp)

	tracer := tp.Tracer("tracing_test")
	_, span := tracer.Start(ctx, "test-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestTraceWriter_UsesConfiguredFileWhenEnvSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spans.jsonl")
	t.Setenv("DEER_FLOW_TRACE_FILE", path)

	f, err := traceWriter()
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, path, f.Name())
}

func TestTraceWriter_FallsBackToStderrWhenEnvUnset(t *testing.T) {
	t.Setenv("DEER_FLOW_TRACE_FILE", "")

	f, err := traceWriter()
	require.NoError(t, err)
	require.Equal(t, os.Stderr, f)
}
