package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"careerlaunch/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`
	// Mount is the KV version 2 engine holding the secrets
	Mount   string        `mapstructure:"mount"`
	Timeout time.Duration `mapstructure:"timeout"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets are paths inside the KV mount. A "<mount>/data/" prefix is
// accepted and stripped.
type VaultSecrets struct {
	// APIKeys holds comma-separated server API keys under the "keys" field
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds the Gemini API key under the "api_key" field
	GeminiKey string `mapstructure:"geminiKey"`
}

const (
	defaultVaultMount   = "secret"
	defaultVaultTimeout = 10 * time.Second
)

// VaultClient reads careerlaunch secrets from a KV version 2 engine
type VaultClient struct {
	kv      *api.KVv2
	config  VaultConfig
	timeout time.Duration
	logger  *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration.
// It returns nil without error when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}
	if config.Mount == "" {
		config.Mount = defaultVaultMount
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultVaultTimeout
	}

	logger.Debug("Initializing Vault client",
		"address", config.Address,
		"namespace", config.Namespace,
		"mount", config.Mount,
		"has_token", config.Token != "")

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}
	vaultConfig.Timeout = timeout
	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	health, err := client.Sys().HealthWithContext(ctx)
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", vaultConfig.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault at %s is sealed", vaultConfig.Address)
	}
	logger.Info("Connected to Vault",
		"address", vaultConfig.Address,
		"version", health.Version,
		"cluster_name", health.ClusterName)

	return &VaultClient{
		kv:      client.KVv2(config.Mount),
		config:  config,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", config.TokenFile)
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// kvPath turns a configured secret path into one relative to the mount
func kvPath(mount, path string) string {
	path = strings.Trim(path, "/")
	return strings.TrimPrefix(path, mount+"/data/")
}

// GetVersionedString reads one string field of a secret together with the
// secret's current version
func (vc *VaultClient) GetVersionedString(ctx context.Context, path, key string) (string, int64, error) {
	if vc == nil {
		return "", 0, fmt.Errorf("vault client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, vc.timeout)
	defer cancel()

	rel := kvPath(vc.config.Mount, path)
	secret, err := vc.kv.Get(ctx, rel)
	if err != nil {
		if stderrors.Is(err, api.ErrSecretNotFound) {
			return "", 0, fmt.Errorf("secret not found at %s/%s", vc.config.Mount, rel)
		}
		return "", 0, fmt.Errorf("failed to read secret %s/%s: %w", vc.config.Mount, rel, err)
	}

	raw, ok := secret.Data[key]
	if !ok {
		return "", 0, fmt.Errorf("key '%s' not found in secret %s", key, rel)
	}
	value, ok := raw.(string)
	if !ok {
		return "", 0, fmt.Errorf("value for key '%s' is not a string in secret %s", key, rel)
	}

	var version int64
	if secret.VersionMetadata != nil {
		version = int64(secret.VersionMetadata.Version)
	}

	vc.logger.Debug("Secret read from Vault",
		"path", rel,
		"key", key,
		"version", version,
		"masked_value", maskSecret(value))
	return value, version, nil
}

// GetStringSecret reads one string field of a secret
func (vc *VaultClient) GetStringSecret(ctx context.Context, path, key string) (string, error) {
	value, _, err := vc.GetVersionedString(ctx, path, key)
	return value, err
}

// GetGeminiKey reads the Gemini API key and its secret version
func (vc *VaultClient) GetGeminiKey() (string, int64, error) {
	if vc == nil {
		return "", 0, fmt.Errorf("vault client not initialized")
	}
	if vc.config.Secrets.GeminiKey == "" {
		return "", 0, fmt.Errorf("no gemini key path configured")
	}
	return vc.GetVersionedString(context.Background(), vc.config.Secrets.GeminiKey, "api_key")
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case len(value) > 0:
		return "****"
	default:
		return ""
	}
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return applySecrets(context.Background(), client, config, logger)
}

// applySecrets copies every configured secret into the config
func applySecrets(ctx context.Context, client *VaultClient, config *Config, logger *errors.Logger) error {
	if path := config.Vault.Secrets.APIKeys; path != "" {
		raw, err := client.GetStringSecret(ctx, path, "keys")
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if keys := splitKeys(raw); len(keys) > 0 {
			config.Server.APIKeys = keys
			logger.Info("API keys loaded from Vault", "count", len(keys))
		} else {
			logger.Warn("No API keys found in Vault", "path", path)
		}
	}

	if config.Vault.Secrets.GeminiKey != "" {
		geminiKey, version, err := client.GetGeminiKey()
		if err != nil {
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if geminiKey == "" {
			logger.Warn("Empty Gemini API key found in Vault", "path", config.Vault.Secrets.GeminiKey)
			return nil
		}
		applyGeminiKeyToConfig(config, geminiKey)
		logger.Info("Gemini API key loaded from Vault", "version", version)
	}

	return nil
}

// applyGeminiKeyToConfig applies the Gemini API key to all AI configurations
// that do not carry their own key
func applyGeminiKeyToConfig(config *Config, geminiKey string) {
	config.AI.APIKey = geminiKey
	for _, op := range []*OperationAIConfig{&config.AI.Optimize, &config.AI.SearchJobs, &config.AI.ResolveURL} {
		if op.APIKey == "" {
			op.APIKey = geminiKey
		}
	}
}
