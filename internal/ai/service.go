package ai

import (
	"fmt"

	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
)

// NewGateway creates the gateway for the configured provider
func NewGateway(cfg *config.Config, opts GatewayOptions) (*GeminiGateway, error) {
	if err := cfg.ValidateAI(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, err.Error(), err)
	}

	if opts.Logger != nil {
		opts.Logger.Debug("Initializing AI gateway",
			"provider", cfg.AI.Provider,
			"model", cfg.AI.Model,
			"timeout", cfg.AI.Timeout,
			"max_retries", cfg.AI.MaxRetries,
			"direct_fetch", cfg.AI.Resolver.DirectFetch)
	}

	switch cfg.AI.Provider {
	case "gemini":
		return NewGeminiGateway(cfg, opts)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.AI.Provider), nil)
	}
}
