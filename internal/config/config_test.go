package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONSOLE_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BackoffBase != time.Second {
		t.Errorf("Expected 1s backoff base, got %v", cfg.BackoffBase)
	}
	if cfg.BackoffCap != 30*time.Second {
		t.Errorf("Expected 30s backoff cap, got %v", cfg.BackoffCap)
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		t.Error("Pong timeout must exceed ping interval")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONSOLE_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("Load should fail without a token")
	}
}

func TestLoadRejectsBadHeartbeat(t *testing.T) {
	t.Setenv("CONSOLE_TOKEN", "tok")
	t.Setenv("CONSOLE_PING_INTERVAL", "30s")
	t.Setenv("CONSOLE_PONG_TIMEOUT", "10s")

	if _, err := Load(); err == nil {
		t.Error("Load should reject a pong timeout below the ping interval")
	}
}
