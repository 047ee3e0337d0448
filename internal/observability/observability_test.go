package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
)

func TestNewLoggerJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "JSON"}, false, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestNewLoggerVerboseOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "error"}, true, &buf)
	logger.Debug("debug line")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "debug line")
}

func TestInitTracingDisabled(t *testing.T) {
	tp, shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "stargazer-test"}, &buf, nil)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "visibility.fetch")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, nil)
	assert.Contains(t, buf.String(), "visibility.fetch")
	assert.Contains(t, buf.String(), "stargazer-test")
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, _, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
