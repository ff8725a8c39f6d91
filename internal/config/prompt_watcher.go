package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"careerlaunch/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// PromptWatcher reloads a PromptStore when its prompt files change on disk
type PromptWatcher struct {
	mu sync.RWMutex

	store *PromptStore
	files []string

	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onReload func(err error)
	logger   *errors.Logger

	running bool
}

// NewPromptWatcher creates a watcher over the files of a prompt store.
// onReload, if set, is called after every reload attempt.
func NewPromptWatcher(store *PromptStore, debounceDelay time.Duration, onReload func(err error), logger *errors.Logger) *PromptWatcher {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	return &PromptWatcher{
		store:         store,
		files:         store.Files(),
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onReload:      onReload,
		logger:        logger.With("component", "prompt_watcher"),
	}
}

// Start begins watching prompt files. It is a no-op when no prompt files are configured.
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}
	if len(pw.files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	pw.fsWatcher = watcher
	pw.updateModTimes()

	for _, file := range pw.files {
		if err := pw.addFileToWatcher(file); err != nil && pw.logger != nil {
			pw.logger.Warn("Failed to watch prompt file", "file", file, "error", err)
		}
	}

	pw.running = true
	go pw.watchLoop()

	if pw.logger != nil {
		pw.logger.Info("Prompt file watcher started", "files", pw.files, "debounce_delay", pw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return nil
	}

	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.running = false

	if err := pw.fsWatcher.Close(); err != nil {
		return fmt.Errorf("failed to close prompt watcher: %w", err)
	}
	if pw.logger != nil {
		pw.logger.Info("Prompt file watcher stopped")
	}
	return nil
}

// isRunning returns whether the watcher is currently running
func (pw *PromptWatcher) isRunning() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}

// addFileToWatcher watches the file's directory so atomic renames are seen too
func (pw *PromptWatcher) addFileToWatcher(file string) error {
	dir := filepath.Dir(file)
	if err := pw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

func (pw *PromptWatcher) updateModTimes() {
	for _, file := range pw.files {
		if stat, err := os.Stat(file); err == nil {
			pw.lastModTime[file] = stat.ModTime()
		}
	}
}

// hasFileChanged checks if a file has been modified since the last check
func (pw *PromptWatcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		return false
	}

	lastMod, exists := pw.lastModTime[file]
	if !exists || stat.ModTime().After(lastMod) {
		pw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

func (pw *PromptWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			if pw.logger != nil {
				pw.logger.LogError(err, "Prompt watcher error")
			}

		case <-pw.reloadChan:
			if slices.ContainsFunc(pw.files, pw.hasFileChanged) {
				pw.reload()
			}

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *PromptWatcher) reload() {
	err := pw.store.Reload()
	if pw.logger != nil {
		if err != nil {
			pw.logger.LogError(err, "Prompt reload failed, keeping previous prompts")
		} else {
			pw.logger.Info("Prompt files changed, prompts reloaded")
		}
	}
	if pw.onReload != nil {
		pw.onReload(err)
	}
}

func (pw *PromptWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil {
		name = event.Name
	}
	if !slices.Contains(pw.files, name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload schedules a debounced reload
func (pw *PromptWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
		}
	})
}
