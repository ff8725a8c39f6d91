package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"careerlaunch/internal/ai"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/observability"
)

// GeminiKeySource reads the current Gemini key together with its secret version
type GeminiKeySource interface {
	GetGeminiKey() (string, int64, error)
}

// KeyWatcher polls Vault for a rotated Gemini key and hands it to the gateway.
// A key is applied only when its secret version is newer than the last one seen.
type KeyWatcher struct {
	mu sync.RWMutex

	source       GeminiKeySource
	updater      ai.KeyUpdater
	pollInterval time.Duration
	metrics      *observability.Metrics
	logger       *errors.Logger

	stopChan    chan struct{}
	stopped     chan struct{}
	running     bool
	lastVersion int64
	lastCheck   time.Time
	lastError   string
	rotations   int
}

// NewKeyWatcher creates a new KeyWatcher
func NewKeyWatcher(source GeminiKeySource, updater ai.KeyUpdater, pollInterval time.Duration, metrics *observability.Metrics, logger *errors.Logger) *KeyWatcher {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &KeyWatcher{
		source:       source,
		updater:      updater,
		pollInterval: pollInterval,
		metrics:      metrics,
		logger:       logger.With("component", "key_watcher"),
	}
}

// Start records the current secret version as the baseline and begins polling.
// The key already loaded at startup is not applied a second time.
func (kw *KeyWatcher) Start() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("key watcher is already running")
	}

	if _, version, err := kw.source.GetGeminiKey(); err != nil {
		kw.logger.LogError(err, "Failed to read initial Gemini key version")
		kw.lastError = err.Error()
	} else {
		kw.lastVersion = version
	}

	kw.stopChan = make(chan struct{})
	kw.stopped = make(chan struct{})
	kw.running = true
	go kw.pollLoop(kw.stopChan, kw.stopped)

	kw.logger.Info("Key watcher started",
		"poll_interval", kw.pollInterval,
		"baseline_version", kw.lastVersion)
	return nil
}

// Stop stops polling and waits for an in-flight check to finish
func (kw *KeyWatcher) Stop() error {
	kw.mu.Lock()
	if !kw.running {
		kw.mu.Unlock()
		return nil
	}
	close(kw.stopChan)
	stopped := kw.stopped
	kw.running = false
	kw.mu.Unlock()

	<-stopped
	kw.logger.Info("Key watcher stopped")
	return nil
}

func (kw *KeyWatcher) pollLoop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			kw.Poll(context.Background())
		case <-stop:
			return
		}
	}
}

// Poll checks the secret once and applies a newer key. It reports whether a
// rotation was applied.
func (kw *KeyWatcher) Poll(ctx context.Context) bool {
	key, version, changed, err := kw.checkForUpdates()
	if err != nil {
		kw.logger.LogError(err, "Failed to check Vault for a rotated Gemini key")
		return false
	}
	if !changed {
		return false
	}

	kw.logger.Info("Gemini key rotated in Vault, applying", "version", version)
	if err := kw.updater.UpdateAPIKey(key); err != nil {
		kw.logger.LogError(err, "Failed to apply rotated Gemini key", "version", version)
		kw.metrics.RecordKeyRotation(ctx, false)
		kw.setError(err)
		return false
	}

	kw.mu.Lock()
	kw.lastVersion = version
	kw.rotations++
	kw.lastError = ""
	kw.mu.Unlock()

	kw.metrics.RecordKeyRotation(ctx, true)
	return true
}

// checkForUpdates reads the secret and reports whether its version moved forward
func (kw *KeyWatcher) checkForUpdates() (string, int64, bool, error) {
	key, version, err := kw.source.GetGeminiKey()

	kw.mu.Lock()
	defer kw.mu.Unlock()
	kw.lastCheck = time.Now()
	if err != nil {
		kw.lastError = err.Error()
		return "", 0, false, fmt.Errorf("failed to read gemini key secret: %w", err)
	}
	if version <= kw.lastVersion || key == "" {
		return "", version, false, nil
	}
	return key, version, true, nil
}

func (kw *KeyWatcher) setError(err error) {
	kw.mu.Lock()
	kw.lastError = err.Error()
	kw.mu.Unlock()
}

// Status returns the current status of the KeyWatcher for health reporting
func (kw *KeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	status := map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"last_version":  kw.lastVersion,
		"rotations":     kw.rotations,
	}
	if !kw.lastCheck.IsZero() {
		status["last_check"] = kw.lastCheck.UTC().Format(time.RFC3339)
	}
	if kw.lastError != "" {
		status["last_error"] = kw.lastError
	}
	return status
}
