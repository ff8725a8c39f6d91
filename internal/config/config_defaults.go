package config

import (
	"time"

	"github.com/spf13/viper"
)

// Operation names used in configuration keys, prompt overrides and metrics
const (
	OperationOptimize   = "optimize"
	OperationSearchJobs = "searchJobs"
	OperationResolveURL = "resolveURL"
)

// Operations lists the gateway operations in pipeline order
var Operations = []string{OperationResolveURL, OperationOptimize, OperationSearchJobs}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", 90*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.temperature", 0.0) // Deterministic output
	v.SetDefault("ai.seed", 1)
	v.SetDefault("ai.modelCheckTimeout", 10*time.Second)

	// Resume rewrite runs longer than the other calls
	v.SetDefault("ai.optimize.timeout", 120*time.Second)
	v.SetDefault("ai.searchJobs.timeout", 90*time.Second)
	v.SetDefault("ai.resolveURL.timeout", 60*time.Second)

	for _, op := range Operations {
		prefix := "ai." + op + ".circuitBreaker."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"maxRequests", 3)
		v.SetDefault(prefix+"interval", 60*time.Second)
		v.SetDefault(prefix+"timeout", 60*time.Second)
		v.SetDefault(prefix+"minRequests", 3)
		v.SetDefault(prefix+"failureThreshold", 0.6)
	}

	// Link resolution
	v.SetDefault("ai.resolver.directFetch", false)
	v.SetDefault("ai.resolver.fetchTimeout", 15*time.Second)
	v.SetDefault("ai.resolver.userAgent", "Mozilla/5.0 (compatible; CareerLaunch/1.0)")
	v.SetDefault("ai.resolver.maxContentChars", 20000)
	v.SetDefault("ai.resolver.allowPrivateHosts", false)

	// Workflow timings
	v.SetDefault("workflow.startProgress", 1)
	v.SetDefault("workflow.optimize.interval", 100*time.Millisecond)
	v.SetDefault("workflow.optimize.step", 1)
	v.SetDefault("workflow.optimize.ceiling", 45)
	v.SetDefault("workflow.optimize.checkpoint", 50)
	v.SetDefault("workflow.searchJobs.interval", 150*time.Millisecond)
	v.SetDefault("workflow.searchJobs.step", 1)
	v.SetDefault("workflow.searchJobs.ceiling", 90)
	v.SetDefault("workflow.searchJobs.checkpoint", 100)
	v.SetDefault("workflow.completionDelay", 500*time.Millisecond)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.sessionTTL", 30*time.Minute)
	v.SetDefault("server.maxSessions", 1000)
	v.SetDefault("server.maxRequestSize", 10*1024*1024) // 10MB, resumes may carry a PDF
	v.SetDefault("server.keyWatcher.enabled", false)
	v.SetDefault("server.keyWatcher.pollInterval", 5*time.Minute)
	// API Authentication defaults
	v.SetDefault("server.apiKeys", []string{})
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "markdown")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 5*1024*1024) // 5MB
	v.SetDefault("app.watchPrompts", false)

	// History Configuration
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "careerlaunch.db")
	v.SetDefault("history.listLimit", 50)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.timeout", "10s")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "careerlaunch")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	// Tracing Configuration
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	// Metrics Configuration
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	// Custom Metrics Configuration
	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.workflow.enabled", true)
	v.SetDefault("observability.customMetrics.workflow.trackPhaseDurations", true)
	v.SetDefault("observability.customMetrics.workflow.trackMatchScores", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackSessions", true)

	// Console Configuration
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	// Prometheus Configuration
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	// OTLP Configuration
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	// Health Check Configuration
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
}
