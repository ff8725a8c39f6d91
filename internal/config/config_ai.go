package config

import "fmt"

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.Seed == nil {
		seed := c.AI.Seed
		opCfg.Seed = &seed
	}
}

// GetOptimizeConfig returns the AI configuration for resume optimization with fallback to global config
func (c *Config) GetOptimizeConfig() OperationAIConfig {
	config := c.AI.Optimize
	c.applyOperationDefaults(&config)
	return config
}

// GetSearchJobsConfig returns the AI configuration for job search with fallback to global config
func (c *Config) GetSearchJobsConfig() OperationAIConfig {
	config := c.AI.SearchJobs
	c.applyOperationDefaults(&config)
	return config
}

// GetResolveURLConfig returns the AI configuration for link resolution with fallback to global config
func (c *Config) GetResolveURLConfig() OperationAIConfig {
	config := c.AI.ResolveURL
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration of a named operation
func (c *Config) GetOperationConfig(operation string) (OperationAIConfig, error) {
	switch operation {
	case OperationOptimize:
		return c.GetOptimizeConfig(), nil
	case OperationSearchJobs:
		return c.GetSearchJobsConfig(), nil
	case OperationResolveURL:
		return c.GetResolveURLConfig(), nil
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", operation)
	}
}

// promptConfigs returns the prompt override of every operation keyed by operation name
func (c *Config) promptConfigs() map[string]PromptConfig {
	return map[string]PromptConfig{
		OperationOptimize:   c.AI.Optimize.Prompt,
		OperationSearchJobs: c.AI.SearchJobs.Prompt,
		OperationResolveURL: c.AI.ResolveURL.Prompt,
	}
}
