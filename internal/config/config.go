package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (CAREERLAUNCH_AI_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	History       HistoryConfig       `mapstructure:"history"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds AI service configuration
type AIConfig struct {
	// Global/fallback configuration
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	APIKey            string        `mapstructure:"apiKey"`
	MaxRetries        int           `mapstructure:"maxRetries"`
	Temperature       float32       `mapstructure:"temperature"`
	Seed              int32         `mapstructure:"seed"`
	ModelCheckTimeout time.Duration `mapstructure:"modelCheckTimeout"`

	// Operation-specific configurations
	Optimize   OperationAIConfig `mapstructure:"optimize"`
	SearchJobs OperationAIConfig `mapstructure:"searchJobs"`
	ResolveURL OperationAIConfig `mapstructure:"resolveURL"`

	Resolver ResolverConfig `mapstructure:"resolver"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for a single gateway operation.
// Pointer fields fall back to the global AIConfig values when unset.
type OperationAIConfig struct {
	Provider       string               `mapstructure:"provider"`
	Model          string               `mapstructure:"model"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	MaxRetries     *int                 `mapstructure:"maxRetries"`
	Temperature    *float32             `mapstructure:"temperature"`
	Seed           *int32               `mapstructure:"seed"`
	Prompt         PromptConfig         `mapstructure:"prompt"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig overrides the built-in instruction of an operation, inline or from a file
type PromptConfig struct {
	Instruction     string `mapstructure:"instruction"`
	InstructionFile string `mapstructure:"instructionFile"`
}

// ResolverConfig controls how job description links are turned into text
type ResolverConfig struct {
	DirectFetch       bool          `mapstructure:"directFetch"`       // Try plain HTTP fetch before asking the model
	FetchTimeout      time.Duration `mapstructure:"fetchTimeout"`      // Timeout for the direct fetch
	UserAgent         string        `mapstructure:"userAgent"`         // User agent for the direct fetch
	MaxContentChars   int           `mapstructure:"maxContentChars"`   // Truncate fetched pages beyond this many characters
	AllowPrivateHosts bool          `mapstructure:"allowPrivateHosts"` // Let the direct fetch reach loopback and private networks
}

// PhaseConfig describes one simulated progress phase
type PhaseConfig struct {
	Interval   time.Duration `mapstructure:"interval"`   // Tick period
	Step       int           `mapstructure:"step"`       // Progress added per tick
	Ceiling    int           `mapstructure:"ceiling"`    // Progress stalls here until the phase resolves
	Checkpoint int           `mapstructure:"checkpoint"` // Progress snaps here when the phase succeeds
}

// WorkflowConfig holds the orchestrator timings
type WorkflowConfig struct {
	StartProgress   int           `mapstructure:"startProgress"`
	Optimize        PhaseConfig   `mapstructure:"optimize"`
	SearchJobs      PhaseConfig   `mapstructure:"searchJobs"`
	CompletionDelay time.Duration `mapstructure:"completionDelay"` // Time spent at 100% before Complete
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`

	// Workflow sessions
	SessionTTL     time.Duration `mapstructure:"sessionTTL"`     // Idle sessions are evicted after this
	MaxSessions    int           `mapstructure:"maxSessions"`    // Upper bound on concurrent sessions
	MaxRequestSize int64         `mapstructure:"maxRequestSize"` // Request body limit in bytes

	// Key rotation from Vault
	KeyWatcher KeyWatcherConfig `mapstructure:"keyWatcher"`
}

// KeyWatcherConfig holds configuration for polling Vault for a rotated Gemini key
type KeyWatcherConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
	WatchPrompts     bool     `mapstructure:"watchPrompts"` // Reload prompt files when they change
}

// HistoryConfig holds the run history store configuration
type HistoryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	ListLimit int    `mapstructure:"listLimit"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations   AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	Workflow       WorkflowMetricsConfig       `mapstructure:"workflow"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig holds AI operation metrics configuration
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

// WorkflowMetricsConfig holds workflow run metrics configuration
type WorkflowMetricsConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	TrackPhaseDurations bool `mapstructure:"trackPhaseDurations"`
	TrackMatchScores    bool `mapstructure:"trackMatchScores"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackSessions   bool `mapstructure:"trackSessions"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

// LoadConfigFile loads configuration from an explicit file path
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/careerlaunch/")
		v.AddConfigPath("$HOME/.careerlaunch")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/careerlaunch/, $HOME/.careerlaunch, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// EnvPrefix is the prefix of every configuration environment variable
const EnvPrefix = "CAREERLAUNCH"

// Validate checks if the configuration is structurally valid. The AI credentials
// are checked separately by ValidateAI so that offline commands still work.
func (c *Config) Validate() error {
	if c.AI.Timeout < 0 {
		return fmt.Errorf("AI timeout must not be negative")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow configuration error: %w", err)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}

	return nil
}

// ValidateAI checks that the AI gateway can be built from this configuration
func (c *Config) ValidateAI() error {
	if c.AI.Provider != "gemini" {
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI API key is required (set %s_AI_APIKEY or GEMINI_API_KEY environment variable)", EnvPrefix)
	}
	return nil
}

// Validate checks that the progress phases are ordered and within 0..100
func (w WorkflowConfig) Validate() error {
	phases := []struct {
		name  string
		phase PhaseConfig
	}{
		{"optimize", w.Optimize},
		{"searchJobs", w.SearchJobs},
	}

	previous := w.StartProgress
	for _, p := range phases {
		if p.phase.Interval <= 0 {
			return fmt.Errorf("%s interval must be positive", p.name)
		}
		if p.phase.Step <= 0 {
			return fmt.Errorf("%s step must be positive", p.name)
		}
		if p.phase.Ceiling < previous || p.phase.Ceiling >= p.phase.Checkpoint {
			return fmt.Errorf("%s ceiling must be between %d and its checkpoint %d", p.name, previous, p.phase.Checkpoint)
		}
		if p.phase.Checkpoint > 100 {
			return fmt.Errorf("%s checkpoint must not exceed 100", p.name)
		}
		previous = p.phase.Checkpoint
	}

	if w.SearchJobs.Checkpoint != 100 {
		return fmt.Errorf("searchJobs checkpoint must be 100")
	}
	if w.CompletionDelay < 0 {
		return fmt.Errorf("completion delay must not be negative")
	}
	return nil
}
