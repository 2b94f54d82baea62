package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"textline/internal/config"
)

func TestNewManager_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	m, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := m.Get()
	if cfg.PinCheck.MaxAttempts != 10 || cfg.PinCheck.WindowMinutes != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg.PinCheck)
	}
	if cfg.Replies.StopAck == "" {
		t.Fatalf("empty default stop ack")
	}
}

func TestManager_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	err = m.Update(func(cfg *config.Runtime) error {
		cfg.PinCheck.MaxAttempts = 3
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager reload: %v", err)
	}
	if got := reloaded.Get().PinCheck.MaxAttempts; got != 3 {
		t.Fatalf("MaxAttempts after reload = %d, want 3", got)
	}
}

func TestManager_FillsMissingSectionsFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  name: mylist\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Server.Name != "mylist" {
		t.Fatalf("server name = %q", cfg.Server.Name)
	}
	if cfg.PinCheck.MaxAttempts != 10 {
		t.Fatalf("pin defaults not applied: %+v", cfg.PinCheck)
	}
}
