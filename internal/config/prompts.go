package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Prompt sources reported by PromptStore.Source
const (
	PromptSourceFile    = "file"
	PromptSourceConfig  = "config"
	PromptSourceDefault = "default"
)

// PromptStore holds the instruction overrides of every operation. File contents
// take precedence over inline instructions; operations with neither fall back to
// the built-in prompt of the AI gateway. Safe for concurrent use.
type PromptStore struct {
	mu      sync.RWMutex
	configs map[string]PromptConfig
	loaded  map[string]string // operation -> file content
}

// NewPromptStore creates a store from the configured overrides and loads their files
func NewPromptStore(cfg *Config) (*PromptStore, error) {
	store := &PromptStore{
		configs: cfg.promptConfigs(),
		loaded:  make(map[string]string),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Get returns the instruction override for an operation and whether one exists
func (s *PromptStore) Get(operation string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if content, ok := s.loaded[operation]; ok {
		return content, true
	}
	if inline := strings.TrimSpace(s.configs[operation].Instruction); inline != "" {
		return inline, true
	}
	return "", false
}

// Source reports where the instruction of an operation comes from
func (s *PromptStore) Source(operation string) string {
	if s == nil {
		return PromptSourceDefault
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.loaded[operation]; ok {
		return PromptSourceFile
	}
	if strings.TrimSpace(s.configs[operation].Instruction) != "" {
		return PromptSourceConfig
	}
	return PromptSourceDefault
}

// Files returns the absolute paths of all configured prompt files, sorted
func (s *PromptStore) Files() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []string
	for _, cfg := range s.configs {
		if cfg.InstructionFile == "" {
			continue
		}
		if abs, err := filepath.Abs(cfg.InstructionFile); err == nil {
			files = append(files, abs)
		}
	}
	slices.Sort(files)
	return files
}

// Reload re-reads every prompt file. On error the previously loaded prompts are kept.
func (s *PromptStore) Reload() error {
	s.mu.RLock()
	configs := s.configs
	s.mu.RUnlock()

	loaded := make(map[string]string, len(configs))
	for op, cfg := range configs {
		if cfg.InstructionFile == "" {
			continue
		}
		content, err := loadPromptFromFile(cfg.InstructionFile, op)
		if err != nil {
			return err
		}
		loaded[op] = content
	}

	s.mu.Lock()
	s.loaded = loaded
	s.mu.Unlock()
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s prompt file '%s': %w", operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s prompt file not found: %s", operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s prompt from file: %s (%d characters)",
		operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}
