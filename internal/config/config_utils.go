package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// applyFallbacks fills values that have a conventional source outside viper
func (c *Config) applyFallbacks() {
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if len(c.Server.APIKeys) == 0 {
		c.Server.APIKeys = splitKeys(os.Getenv(EnvPrefix + "_SERVER_APIKEYS"))
	} else {
		// keys split by viper from a single env value keep their surrounding spaces
		c.Server.APIKeys = splitKeys(strings.Join(c.Server.APIKeys, ","))
	}

	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = serviceInstanceID(c.Observability.ServiceName)
	}
	// debug logging implies console telemetry unless configured otherwise
	if c.App.LogLevel == "debug" {
		c.Observability.ConsoleOutput = true
	}
}

func splitKeys(raw string) []string {
	var keys []string
	for key := range strings.SplitSeq(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func serviceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return serviceName + "-" + hostname
	}
	return serviceName + "-1"
}

// validatePromptFiles reports every configured prompt file that is missing
func (c *Config) validatePromptFiles() error {
	var errs []error
	prompts := c.promptConfigs()

	for _, op := range Operations {
		path := prompts[op].InstructionFile
		if path == "" {
			continue
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid path for %s prompt: %s", op, path))
			continue
		}
		if _, err := os.Stat(absPath); stderrors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%s prompt file not found: %s", op, absPath))
		}
	}

	return stderrors.Join(errs...)
}

// trackedEnvVars are reported by the startup summary when set
var trackedEnvVars = []string{
	EnvPrefix + "_AI_APIKEY",
	EnvPrefix + "_AI_MODEL",
	EnvPrefix + "_SERVER_PORT",
	EnvPrefix + "_SERVER_APIKEYS",
	EnvPrefix + "_APP_LOGLEVEL",
	EnvPrefix + "_VAULT_ENABLED",
	EnvPrefix + "_HISTORY_ENABLED",
	"GEMINI_API_KEY",
}

func presence(value string) string {
	if value == "" {
		return "***NOT SET***"
	}
	return "***CONFIGURED***"
}

// summaryLines describes where configuration came from and the values that
// matter when diagnosing a deployment. Secrets are reported by presence only.
func (c *Config) summaryLines(configFileUsed string) []string {
	source := configFileUsed
	if source == "" {
		source = "none (defaults and environment)"
	}
	lines := []string{"Config file: " + source}

	var envSet []string
	for _, name := range trackedEnvVars {
		value, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(name), "key") {
			value = "***MASKED***"
		}
		envSet = append(envSet, name+"="+value)
	}
	if len(envSet) == 0 {
		envSet = []string{"none"}
	}
	lines = append(lines, "Environment: "+strings.Join(envSet, ", "))

	lines = append(lines,
		fmt.Sprintf("AI: provider=%s model=%s key=%s", c.AI.Provider, c.AI.Model, presence(c.AI.APIKey)),
		fmt.Sprintf("Server: %s:%s (api keys: %d)", c.Server.Host, c.Server.Port, len(c.Server.APIKeys)),
		fmt.Sprintf("History: enabled=%t path=%s", c.History.Enabled, c.History.Path),
		fmt.Sprintf("Vault: enabled=%t, Observability: enabled=%t, Log level: %s",
			c.Vault.Enabled, c.Observability.Enabled, c.App.LogLevel),
	)

	for _, op := range Operations {
		opCfg, err := c.GetOperationConfig(op)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("Operation %s: model=%s timeout=%s", op, opCfg.Model, *opCfg.Timeout))
	}
	return lines
}

// logConfigurationSources writes the summary through the standard logger,
// which is all that exists before the application logger is built
func (c *Config) logConfigurationSources(configFileUsed string) {
	for _, line := range c.summaryLines(configFileUsed) {
		log.Printf("[CONFIG] %s", line)
	}
}
