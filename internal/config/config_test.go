package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Fatalf("session ttl = %s, want 24h", cfg.Auth.SessionTTL)
	}
	if cfg.Database.URL != "" {
		t.Fatalf("database url should default to empty, got %q", cfg.Database.URL)
	}
	if cfg.Billing.PaystackBaseURL == "" {
		t.Fatal("paystack base url should have a default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LIFEOS_SERVER_PORT", "9090")
	t.Setenv("LIFEOS_JWT_SECRET", "super-secret")
	t.Setenv("LIFEOS_RATES_REFRESH_INTERVAL", "15m")
	t.Setenv("LIFEOS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LIFEOS_AUDIT_LOG", "/var/log/lifeos/audit.jsonl")
	t.Setenv("LIFEOS_FLUTTERWAVE_HASH", "flw-hash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "super-secret" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Currency.RefreshInterval != 15*time.Minute {
		t.Fatalf("refresh interval = %s, want 15m", cfg.Currency.RefreshInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.AuditLogPath != "/var/log/lifeos/audit.jsonl" {
		t.Fatalf("audit log path = %q", cfg.Server.AuditLogPath)
	}
	if cfg.Billing.FlutterwaveHash != "flw-hash" {
		t.Fatalf("flutterwave hash = %q", cfg.Billing.FlutterwaveHash)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifeos.yaml")
	data := []byte("server:\n  port: 7070\nauth:\n  session_ttl: 1h\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LIFEOS_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != time.Hour {
		t.Fatalf("session ttl = %s, want 1h", cfg.Auth.SessionTTL)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifeos.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LIFEOS_CONFIG", path)
	t.Setenv("LIFEOS_SERVER_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Fatalf("port = %d, want env override 6060", cfg.Server.Port)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative port")
	}
}

func TestValidateRejectsZeroSweepInterval(t *testing.T) {
	cfg := Default()
	cfg.Engine.SweepInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sweep interval")
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8081
	if got := cfg.Addr(); got != "127.0.0.1:8081" {
		t.Fatalf("Addr = %q", got)
	}
}
