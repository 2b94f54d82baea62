package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager manages runtime configuration with thread-safe reads and writes.
type Manager struct {
	mu         sync.RWMutex
	config     *Runtime
	configPath string
}

// NewManager creates a new configuration manager.
// If the config file doesn't exist, it creates one with default values.
func NewManager(configPath string) (*Manager, error) {
	m := &Manager{configPath: configPath}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := m.createDefaultConfig(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return m, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Update atomically updates the configuration through fn and persists it.
// If fn returns an error, nothing is saved.
func (m *Manager) Update(fn func(*Runtime) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := *m.config
	if err := fn(&updated); err != nil {
		return err
	}
	if err := m.writeConfig(&updated); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	m.config = &updated
	return nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Runtime
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fill gaps from defaults so a hand-trimmed file still behaves.
	defaults := DefaultRuntime()
	if cfg.Server.Name == "" {
		cfg.Server = defaults.Server
	}
	if cfg.Replies.Help == "" {
		cfg.Replies = defaults.Replies
	}
	if cfg.PinCheck.MaxAttempts <= 0 || cfg.PinCheck.WindowMinutes <= 0 {
		cfg.PinCheck = defaults.PinCheck
	}

	m.config = &cfg
	return nil
}

// writeConfig writes the config to disk atomically using temp file + rename.
func (m *Manager) writeConfig(cfg *Runtime) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempPath := m.configPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := os.Rename(tempPath, m.configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}
	return nil
}

func (m *Manager) createDefaultConfig() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultRuntime())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	header := `# textline runtime configuration
# This file is automatically created on first run.
# Secrets are never stored here; see the environment variables in README.

`
	if err := os.WriteFile(m.configPath, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
