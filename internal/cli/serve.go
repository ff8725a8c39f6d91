package cli

import (
	"careerlaunch/internal/config"
	"careerlaunch/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for resume optimization and job matching",
	Long: `Start an HTTP server exposing the two-phase workflow as sessions.

Available endpoints:
- POST   /api/v1/sessions: Create a session
- POST   /api/v1/sessions/{id}/submit: Start optimization followed by job search
- GET    /api/v1/sessions/{id}: Current state snapshot
- GET    /api/v1/sessions/{id}/events: Progress as Server-Sent Events
- POST   /api/v1/sessions/{id}/reset: Abandon the current run
- GET    /api/v1/sessions/{id}/export/{resume|jobs}: Markdown download
- DELETE /api/v1/sessions/{id}: Drop a session
- GET    /api/v1/locations: Country and state catalogue
- GET    /api/v1/history: Recently finished runs
- GET    /health: Health check endpoint
- GET    /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringSlice("api-keys", nil, "API keys accepted by the server (overrides config)")
	serveCmd.Flags().Bool("rate-limit", false, "Enable per-client rate limiting (overrides config)")
	serveCmd.Flags().Int("rate-limit-rpm", 0, "Requests per minute per client (overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
// The configuration is loaded before flags are parsed, so flags are applied here
// rather than bound into viper.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("api-keys") {
		cfg.Server.APIKeys, _ = flags.GetStringSlice("api-keys")
	}
	if flags.Changed("rate-limit") {
		cfg.Server.RateLimit.Enabled, _ = flags.GetBool("rate-limit")
	}
	if flags.Changed("rate-limit-rpm") {
		cfg.Server.RateLimit.RequestsPerMin, _ = flags.GetInt("rate-limit-rpm")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	applyServeFlags(cmd, cfg)

	rt, err := newRuntime(cfg, logger, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	metrics := rt.om.GetMetrics()
	sessions := server.NewSessionRegistry(rt.newOrchestrator, cfg.Server.SessionTTL, cfg.Server.MaxSessions, metrics, logger)

	var keyWatcher *server.KeyWatcher
	if cfg.Vault.Enabled && cfg.Server.KeyWatcher.Enabled {
		vaultClient, err := config.NewVaultClient(cfg.Vault, logger)
		if err != nil {
			return err
		}
		keyWatcher = server.NewKeyWatcher(vaultClient, rt.gateway, cfg.Server.KeyWatcher.PollInterval, metrics, logger)
	}

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), server.Dependencies{
		Sessions:   sessions,
		Health:     rt.gateway,
		History:    rt.history,
		KeyWatcher: keyWatcher,
		Metrics:    metrics,
	}, logger)

	logger.Info("Starting careerlaunch server",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"history_enabled", rt.history != nil,
		"key_watcher_enabled", keyWatcher != nil)

	return srv.Run(ctx, rt.om)
}
