package observability

import (
	"time"

	"careerlaunch/internal/config"
)

// ObservabilityConfig is everything the manager needs, resolved from the
// application config once at startup
type ObservabilityConfig struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool
	Tracing         bool
	SampleRate      float64

	Console            ConsoleSettings
	OTLP               OTLPSettings
	Prometheus         PrometheusConfig
	CollectionInterval time.Duration
	Families           config.CustomMetricsConfig
}

// ConsoleSettings controls the stdout exporters
type ConsoleSettings struct {
	Enabled     bool
	PrettyPrint bool
}

// OTLPSettings controls the OTLP/HTTP exporters
type OTLPSettings struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Headers  map[string]string
}

const defaultCollectionInterval = 15 * time.Second

// allFamilies turns every custom metric family on
func allFamilies() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		AIOperations:   config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
		Workflow:       config.WorkflowMetricsConfig{Enabled: true, TrackPhaseDurations: true, TrackMatchScores: true},
		Infrastructure: config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true, TrackSessions: true},
	}
}

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:        "careerlaunch",
			ServiceVersion:     version,
			ServiceInstance:    "careerlaunch-1",
			Enabled:            true,
			Tracing:            true,
			SampleRate:         1.0,
			Console:            ConsoleSettings{Enabled: true, PrettyPrint: true},
			Prometheus:         GetPrometheusConfig(nil),
			CollectionInterval: defaultCollectionInterval,
			Families:           allFamilies(),
		}
	}

	obs := cfg.Observability

	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	sampleRate := obs.SampleRate
	if obs.Tracing.SampleRate > 0 {
		sampleRate = obs.Tracing.SampleRate
	}

	instance := obs.ServiceInstance
	if instance == "" {
		instance = obs.ServiceName + "-1"
	}

	interval := obs.Metrics.CollectionInterval
	if interval <= 0 {
		interval = defaultCollectionInterval
	}

	return ObservabilityConfig{
		ServiceName:     obs.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: instance,
		Enabled:         obs.Enabled,
		Tracing:         obs.Tracing.Enabled,
		SampleRate:      sampleRate,
		Console: ConsoleSettings{
			Enabled:     obs.ConsoleOutput || obs.Console.Enabled,
			PrettyPrint: obs.Console.PrettyPrint,
		},
		OTLP: OTLPSettings{
			Enabled:  obs.OTLP.Enabled,
			Endpoint: obs.OTLP.Endpoint,
			Insecure: obs.OTLP.Insecure,
			Headers:  obs.OTLP.Headers,
		},
		Prometheus:         GetPrometheusConfig(cfg),
		CollectionInterval: interval,
		Families:           obs.CustomMetrics,
	}
}
