package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"careerlaunch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func allMetricsOn() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		AIOperations:   config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
		Workflow:       config.WorkflowMetricsConfig{Enabled: true, TrackPhaseDurations: true, TrackMatchScores: true},
		Infrastructure: config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true, TrackSessions: true},
	}
}

func newTestMetrics(t *testing.T, settings config.CustomMetricsConfig) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := newMetrics(provider.Meter("test"), settings)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordAIOperation(t *testing.T) {
	m, reader := newTestMetrics(t, allMetricsOn())
	ctx := context.Background()

	m.RecordAIOperation(ctx, "optimize", 2*time.Second, &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil)
	m.RecordAIOperation(ctx, "searchJobs", time.Second, nil, errors.New("boom"))

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["careerlaunch_ai_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["careerlaunch_ai_errors_total"]))

	tokens, ok := got["careerlaunch_ai_token_usage_total"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 3)

	_, ok = got["careerlaunch_ai_processing_duration_seconds"]
	assert.True(t, ok)
}

func TestWorkflowMetrics(t *testing.T) {
	m, reader := newTestMetrics(t, allMetricsOn())
	ctx := context.Background()

	m.RecordRunStarted(ctx, "Professional")
	m.RecordRunStarted(ctx, "Concise")
	m.RecordRunFinished(ctx, OutcomeCompleted)
	m.RecordRunFinished(ctx, OutcomeFailed)
	m.RecordRunReset(ctx)
	m.RecordPhaseDuration(ctx, "Optimizing", 300*time.Millisecond, true)
	m.RecordMatchScore(ctx, 78)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["careerlaunch_workflow_runs_started_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["careerlaunch_workflow_runs_finished_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["careerlaunch_workflow_resets_total"]))

	score, ok := got["careerlaunch_match_score"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, score.DataPoints, 1)
	assert.Equal(t, int64(78), score.DataPoints[0].Sum)
}

func TestDisabledFamiliesRecordNothing(t *testing.T) {
	m, reader := newTestMetrics(t, config.CustomMetricsConfig{})
	ctx := context.Background()

	m.RecordAIOperation(ctx, "optimize", time.Second, nil, nil)
	m.RecordRunStarted(ctx, "Professional")
	m.RecordRateLimitHit(ctx)
	m.AddActiveSessions(ctx, 1)

	got := collect(t, reader)
	for _, name := range []string{
		"careerlaunch_ai_requests_total",
		"careerlaunch_workflow_runs_started_total",
		"careerlaunch_rate_limit_hits_total",
	} {
		if m, ok := got[name]; ok {
			assert.Zero(t, sumOf(t, m), name)
		}
	}
}

func TestNilAndEmptyMetricsAreSafe(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *Metrics
	empty := &Metrics{settings: allMetricsOn()}

	for _, m := range []*Metrics{nilMetrics, empty} {
		assert.NotPanics(t, func() {
			m.RecordAIOperation(ctx, "optimize", time.Second, &TokenUsage{}, nil)
			m.RecordRunStarted(ctx, "Professional")
			m.RecordRunFinished(ctx, OutcomeCompleted)
			m.RecordRunReset(ctx)
			m.RecordPhaseDuration(ctx, "Optimizing", time.Second, true)
			m.RecordMatchScore(ctx, 50)
			m.RecordRateLimitHit(ctx)
			m.AddActiveSessions(ctx, -1)
			m.RecordKeyRotation(ctx, true)
		})
	}
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "careerlaunch"})
	require.NoError(t, err)

	assert.NotNil(t, om.GetMetrics())
	assert.Nil(t, om.PrometheusServer())
	assert.NotNil(t, om.Tracer("test"))
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{Observability: config.ObservabilityConfig{
		Enabled:     true,
		ServiceName: "careerlaunch",
		SampleRate:  1.0,
		Tracing:     config.TracingConfig{Enabled: true, SampleRate: 0.25},
		Metrics:     config.MetricsConfig{Enabled: false},
		Prometheus:  config.PrometheusConfig{Enabled: true, Endpoint: "/metrics", Port: "9090"},
	}}

	got := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", got.ServiceVersion)
	assert.Equal(t, 0.25, got.SampleRate)
	assert.True(t, got.Tracing)
	assert.False(t, got.Prometheus.Enabled, "prometheus follows the metrics switch")
}
