package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func enabledConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	return cfg
}

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true}

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_ExportsSpansAndMetrics(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	tel, err := New(ctx, enabledConfig(),
		WithSpanExporter(spans),
		WithMetricReader(reader),
		WithoutGlobals(),
	)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	_, span := tel.Tracer("test").Start(ctx, "jobs.optimize")
	span.End()

	counter, err := tel.Meter("test").Int64Counter("vocabopt.test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, tel.ForceFlush(ctx))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "jobs.optimize", got[0].Name)
	assert.Equal(t, "vocaboptd", serviceName(got[0].Resource.Attributes()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Health().Healthy)
}

func TestTelemetry_SampleRateZeroDropsRootSpans(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	cfg := enabledConfig()
	cfg.SampleRate = 0

	tel, err := New(ctx, cfg,
		WithSpanExporter(spans),
		WithMetricReader(sdkmetric.NewManualReader()),
		WithoutGlobals(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	_, span := tel.Tracer("test").Start(ctx, "dropped")
	span.End()
	require.NoError(t, tel.ForceFlush(ctx))
	assert.Empty(t, spans.GetSpans())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.Health()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ServiceName = "vocabopt-test"

	res := newResource(cfg)
	assert.Equal(t, "vocabopt-test", serviceName(res.Attributes()))
}

func serviceName(attrs []attribute.KeyValue) string {
	for _, a := range attrs {
		if a.Key == "service.name" {
			return a.Value.AsString()
		}
	}
	return ""
}
