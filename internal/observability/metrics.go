package observability

import (
	"context"
	"fmt"
	"time"

	"careerlaunch/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Run outcomes recorded by RecordRunFinished
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics holds all custom metrics for CareerLaunch. A zero Metrics, or a nil
// pointer, records nothing.
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Workflow metrics
	RunsStarted   metric.Int64Counter
	RunsFinished  metric.Int64Counter
	RunsReset     metric.Int64Counter
	PhaseDuration metric.Float64Histogram
	MatchScore    metric.Int64Histogram

	// Infrastructure metrics
	RateLimitHits  metric.Int64Counter
	ActiveSessions metric.Int64UpDownCounter
	KeyRotations   metric.Int64Counter

	settings config.CustomMetricsConfig
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

func newMetrics(meter metric.Meter, settings config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{settings: settings}

	if err := m.createAIMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createWorkflowMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createInfrastructureMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

// createAIMetrics creates AI-related metrics
func (m *Metrics) createAIMetrics(meter metric.Meter) error {
	var err error

	m.AIProcessingTime, err = meter.Float64Histogram(
		"careerlaunch_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"careerlaunch_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"careerlaunch_ai_errors_total",
		metric.WithDescription("Total number of AI request errors"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram(
		"careerlaunch_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	return nil
}

// createWorkflowMetrics creates metrics for orchestrator runs
func (m *Metrics) createWorkflowMetrics(meter metric.Meter) error {
	var err error

	m.RunsStarted, err = meter.Int64Counter(
		"careerlaunch_workflow_runs_started_total",
		metric.WithDescription("Total number of workflow runs started"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs started metric: %w", err)
	}

	m.RunsFinished, err = meter.Int64Counter(
		"careerlaunch_workflow_runs_finished_total",
		metric.WithDescription("Total number of workflow runs that reached a terminal phase"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs finished metric: %w", err)
	}

	m.RunsReset, err = meter.Int64Counter(
		"careerlaunch_workflow_resets_total",
		metric.WithDescription("Total number of workflow resets"),
	)
	if err != nil {
		return fmt.Errorf("failed to create resets metric: %w", err)
	}

	m.PhaseDuration, err = meter.Float64Histogram(
		"careerlaunch_workflow_phase_duration_seconds",
		metric.WithDescription("Time spent in each workflow phase"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create phase duration metric: %w", err)
	}

	m.MatchScore, err = meter.Int64Histogram(
		"careerlaunch_match_score",
		metric.WithDescription("Match score of optimized resumes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create match score metric: %w", err)
	}

	return nil
}

// createInfrastructureMetrics creates rate limiting, session and key rotation metrics
func (m *Metrics) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	m.RateLimitHits, err = meter.Int64Counter(
		"careerlaunch_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"careerlaunch_sessions_active",
		metric.WithDescription("Number of live workflow sessions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active sessions metric: %w", err)
	}

	m.KeyRotations, err = meter.Int64Counter(
		"careerlaunch_api_key_rotations_total",
		metric.WithDescription("Total number of Gemini API key rotations applied from Vault"),
	)
	if err != nil {
		return fmt.Errorf("failed to create key rotation metric: %w", err)
	}

	return nil
}

// RecordAIOperation records duration, count, errors and token usage of one gateway call
func (m *Metrics) RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *TokenUsage, err error) {
	if m == nil || m.AIRequestCount == nil || !m.settings.AIOperations.Enabled {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	if m.settings.AIOperations.TrackDuration {
		m.AIProcessingTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if usage != nil && m.settings.AIOperations.TrackTokenUsage {
		m.recordTokenMetrics(ctx, operation, usage)
	}
}

// recordTokenMetrics records individual token usage metrics
func (m *Metrics) recordTokenMetrics(ctx context.Context, operation string, usage *TokenUsage) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

func (m *Metrics) workflowEnabled() bool {
	return m != nil && m.RunsStarted != nil && m.settings.Workflow.Enabled
}

// RecordRunStarted counts a submitted run
func (m *Metrics) RecordRunStarted(ctx context.Context, tone string) {
	if !m.workflowEnabled() {
		return
	}
	m.RunsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("tone", tone)))
}

// RecordRunFinished counts a run that reached Complete or Failed
func (m *Metrics) RecordRunFinished(ctx context.Context, outcome string) {
	if !m.workflowEnabled() {
		return
	}
	m.RunsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRunReset counts a reset
func (m *Metrics) RecordRunReset(ctx context.Context) {
	if !m.workflowEnabled() {
		return
	}
	m.RunsReset.Add(ctx, 1)
}

// RecordPhaseDuration records how long a phase took until it resolved
func (m *Metrics) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, success bool) {
	if !m.workflowEnabled() || !m.settings.Workflow.TrackPhaseDurations {
		return
	}
	m.PhaseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.Bool("success", success),
	))
}

// RecordMatchScore records the match score of an optimization result
func (m *Metrics) RecordMatchScore(ctx context.Context, score int) {
	if !m.workflowEnabled() || !m.settings.Workflow.TrackMatchScores {
		return
	}
	m.MatchScore.Record(ctx, int64(score))
}

func (m *Metrics) infrastructureEnabled() bool {
	return m != nil && m.RateLimitHits != nil && m.settings.Infrastructure.Enabled
}

// RecordRateLimitHit records a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, attrs ...attribute.KeyValue) {
	if !m.infrastructureEnabled() || !m.settings.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddActiveSessions adjusts the live session gauge by delta
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	if !m.infrastructureEnabled() || !m.settings.Infrastructure.TrackSessions {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}

// RecordKeyRotation records an attempt to apply a rotated API key
func (m *Metrics) RecordKeyRotation(ctx context.Context, success bool) {
	if !m.infrastructureEnabled() {
		return
	}
	m.KeyRotations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
