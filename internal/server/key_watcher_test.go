package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockKeySource is a mock Vault secret holding a versioned Gemini key
type MockKeySource struct {
	mu      sync.Mutex
	key     string
	version int64
	err     error
}

func (m *MockKeySource) GetGeminiKey() (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, m.version, m.err
}

func (m *MockKeySource) rotate(key string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key, m.version = key, version
}

// MockKeyUpdater records applied keys
type MockKeyUpdater struct {
	mu      sync.Mutex
	applied []string
	err     error
}

func (m *MockKeyUpdater) UpdateAPIKey(apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, apiKey)
	return nil
}

func (m *MockKeyUpdater) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applied...)
}

func TestKeyWatcherAppliesOnlyNewerVersions(t *testing.T) {
	source := &MockKeySource{key: "initial-key", version: 1}
	updater := &MockKeyUpdater{}
	kw := NewKeyWatcher(source, updater, time.Hour, nil, nil)

	if err := kw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = kw.Stop() }()

	// Baseline version is not reapplied
	if kw.Poll(context.Background()) {
		t.Error("expected no rotation at the baseline version")
	}

	source.rotate("rotated-key", 2)
	if !kw.Poll(context.Background()) {
		t.Fatal("expected rotation for version 2")
	}
	if kw.Poll(context.Background()) {
		t.Error("expected the same version not to be applied twice")
	}

	got := updater.keys()
	if len(got) != 1 || got[0] != "rotated-key" {
		t.Errorf("applied keys = %v, want [rotated-key]", got)
	}

	status := kw.Status()
	if status["last_version"] != int64(2) {
		t.Errorf("last_version = %v, want 2", status["last_version"])
	}
	if status["rotations"] != 1 {
		t.Errorf("rotations = %v, want 1", status["rotations"])
	}
}

func TestKeyWatcherUpdateFailureRetries(t *testing.T) {
	source := &MockKeySource{key: "initial-key", version: 1}
	updater := &MockKeyUpdater{err: fmt.Errorf("invalid key")}
	kw := NewKeyWatcher(source, updater, time.Hour, nil, nil)
	if err := kw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = kw.Stop() }()

	source.rotate("bad-key", 2)
	if kw.Poll(context.Background()) {
		t.Fatal("expected failed update not to count as a rotation")
	}
	if _, ok := kw.Status()["last_error"]; !ok {
		t.Error("expected last_error in status after failed update")
	}

	// The version was not consumed, so the next poll tries again
	updater.mu.Lock()
	updater.err = nil
	updater.mu.Unlock()
	if !kw.Poll(context.Background()) {
		t.Error("expected the rotation to be retried and applied")
	}
}

func TestKeyWatcherSourceError(t *testing.T) {
	source := &MockKeySource{err: fmt.Errorf("vault sealed")}
	updater := &MockKeyUpdater{}
	kw := NewKeyWatcher(source, updater, time.Hour, nil, nil)

	if err := kw.Start(); err != nil {
		t.Fatalf("Start should tolerate an unreadable secret: %v", err)
	}
	defer func() { _ = kw.Stop() }()

	if kw.Poll(context.Background()) {
		t.Error("expected no rotation when the secret is unreadable")
	}
	if kw.Status()["last_error"] == nil {
		t.Error("expected last_error to be reported")
	}
	if len(updater.keys()) != 0 {
		t.Error("expected no key to be applied")
	}
}

func TestKeyWatcherStartStop(t *testing.T) {
	kw := NewKeyWatcher(&MockKeySource{key: "k", version: 1}, &MockKeyUpdater{}, 10*time.Millisecond, nil, nil)

	if err := kw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := kw.Start(); err == nil {
		t.Error("expected an error when starting twice")
	}
	if running := kw.Status()["running"]; running != true {
		t.Errorf("running = %v, want true", running)
	}

	if err := kw.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := kw.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op: %v", err)
	}
	if running := kw.Status()["running"]; running != false {
		t.Errorf("running = %v, want false", running)
	}
}

func TestKeyWatcherPollLoopAppliesRotation(t *testing.T) {
	source := &MockKeySource{key: "initial-key", version: 1}
	updater := &MockKeyUpdater{}
	kw := NewKeyWatcher(source, updater, 5*time.Millisecond, nil, nil)
	if err := kw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = kw.Stop() }()

	source.rotate("rotated-key", 7)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(updater.keys()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("rotation was not applied by the poll loop, applied = %v", updater.keys())
}
