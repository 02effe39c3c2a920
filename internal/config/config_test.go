package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"party-service/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Sync.ConflictWindow != 30*time.Second {
		t.Fatalf("expected 30s conflict window, got %s", cfg.Sync.ConflictWindow)
	}
	if cfg.Sync.ReconcileInterval != 5*time.Second {
		t.Fatalf("expected 5s reconcile interval, got %s", cfg.Sync.ReconcileInterval)
	}
	if cfg.Game.MaxPlayers != 15 {
		t.Fatalf("expected max players 15, got %d", cfg.Game.MaxPlayers)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: \"9090\"\ngame:\n  nightDuration: 10s\nbus:\n  driver: local\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PARTY_SERVER_MODE", "release")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.Mode != "release" {
		t.Fatalf("expected env override release, got %s", cfg.Server.Mode)
	}
	if cfg.Game.NightDuration != 10*time.Second {
		t.Fatalf("expected 10s night, got %s", cfg.Game.NightDuration)
	}
	if cfg.Bus.Driver != "local" {
		t.Fatalf("expected local bus, got %s", cfg.Bus.Driver)
	}
}
