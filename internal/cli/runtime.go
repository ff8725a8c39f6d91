package cli

import (
	"context"
	"fmt"
	"time"

	"careerlaunch/internal/ai"
	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/history"
	"careerlaunch/internal/observability"
	"careerlaunch/internal/workflow"
)

// runtime bundles the collaborators shared by serve and optimize
type runtime struct {
	cfg           *config.Config
	logger        *errors.Logger
	om            *observability.ObservabilityManager
	gateway       *ai.GeminiGateway
	prompts       *config.PromptStore
	promptWatcher *config.PromptWatcher
	history       *history.Store
}

// newRuntime loads Vault secrets, then builds observability, prompts, the
// gateway and the history store. Close releases everything it opened.
func newRuntime(cfg *config.Config, logger *errors.Logger, watchPrompts bool) (*runtime, error) {
	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to load secrets from Vault", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	rt.om = om

	prompts, err := config.NewPromptStore(cfg)
	if err != nil {
		rt.Close()
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to load prompt files", err)
	}
	rt.prompts = prompts

	gateway, err := ai.NewGateway(cfg, ai.GatewayOptions{
		Prompts: prompts,
		Metrics: om.GetMetrics(),
		Logger:  logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.gateway = gateway

	if watchPrompts && cfg.App.WatchPrompts && len(prompts.Files()) > 0 {
		rt.promptWatcher = config.NewPromptWatcher(prompts, time.Second, func(err error) {
			if err != nil {
				logger.LogError(err, "Prompt reload failed, keeping previous prompts")
				return
			}
			logger.Info("Prompt overrides reloaded")
		}, logger)
		if err := rt.promptWatcher.Start(); err != nil {
			logger.LogError(err, "Failed to start prompt watcher")
			rt.promptWatcher = nil
		}
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		// History is optional; runs still work without it
		logger.LogError(err, "Failed to open run history, continuing without it", "path", cfg.History.Path)
	}
	rt.history = store

	return rt, nil
}

// newOrchestrator builds one orchestrator wired to the shared collaborators
func (rt *runtime) newOrchestrator() *workflow.Orchestrator {
	opts := workflow.Options{
		Timings: rt.cfg.Workflow,
		Metrics: rt.om.GetMetrics(),
		Logger:  rt.logger,
	}
	if rt.history != nil {
		opts.Recorder = rt.history
	}
	return workflow.NewOrchestrator(rt.gateway, opts)
}

// Close stops watchers and flushes telemetry
func (rt *runtime) Close() {
	if rt.promptWatcher != nil {
		if err := rt.promptWatcher.Stop(); err != nil {
			rt.logger.LogError(err, "Failed to stop prompt watcher")
		}
	}
	if err := rt.history.Close(); err != nil {
		rt.logger.LogError(err, "Failed to close run history")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.om.Shutdown(ctx); err != nil {
		rt.logger.LogError(err, "Failed to shutdown observability")
	}
}
