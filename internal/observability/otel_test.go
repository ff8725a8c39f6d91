package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careerlaunch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusEndpointServesRunMetrics(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:     "careerlaunch",
		ServiceVersion:  "test",
		ServiceInstance: "careerlaunch-test",
		Enabled:         true,
		Prometheus:      PrometheusConfig{Enabled: true, Endpoint: "/metrics", Port: "0"},
		Families:        allFamilies(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	server := om.PrometheusServer()
	require.NotNil(t, server)

	om.GetMetrics().RecordRunStarted(context.Background(), "Professional")

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "careerlaunch_workflow_runs_started")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestEnabledManagerWithoutExporters(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName: "careerlaunch",
		Enabled:     true,
		Tracing:     true,
		SampleRate:  1.0,
		Families:    allFamilies(),
	})
	require.NoError(t, err)

	assert.Nil(t, om.PrometheusServer())

	_, span := om.Tracer("careerlaunch.test").Start(context.Background(), "work")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NotPanics(t, func() {
		om.GetMetrics().RecordMatchScore(context.Background(), 90)
	})

	handler := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.NoError(t, om.Shutdown(context.Background()))
	assert.NoError(t, om.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestGetObservabilityConfigDefaults(t *testing.T) {
	got := GetObservabilityConfig(nil, "dev")
	assert.Equal(t, "careerlaunch", got.ServiceName)
	assert.Equal(t, "dev", got.ServiceVersion)
	assert.True(t, got.Console.Enabled)
	assert.Equal(t, defaultCollectionInterval, got.CollectionInterval)
	assert.True(t, got.Families.Workflow.Enabled)

	cfg := &config.Config{Observability: config.ObservabilityConfig{
		Enabled:       true,
		ServiceName:   "careerlaunch",
		Metrics:       config.MetricsConfig{Enabled: true, CollectionInterval: 5 * time.Second},
		OTLP:          config.OTLPConfig{Enabled: true, Endpoint: "http://collector:4318", Headers: map[string]string{"x-team": "careers"}},
		CustomMetrics: config.CustomMetricsConfig{Workflow: config.WorkflowMetricsConfig{Enabled: true}},
	}}
	got = GetObservabilityConfig(cfg, "1.0.0")
	assert.Equal(t, "careerlaunch-1", got.ServiceInstance)
	assert.Equal(t, 5*time.Second, got.CollectionInterval)
	assert.True(t, got.OTLP.Enabled)
	assert.Equal(t, "careers", got.OTLP.Headers["x-team"])
	assert.True(t, got.Families.Workflow.Enabled)
	assert.False(t, got.Families.AIOperations.Enabled)
}
