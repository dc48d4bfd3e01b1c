package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Policy.Dir == "" || cfg.Server.Addr == "" {
		t.Fatal("expected non-empty defaults")
	}
	if time.Duration(cfg.Approval.TTL) != 15*time.Minute {
		t.Errorf("expected default TTL of 15m, got %s", time.Duration(cfg.Approval.TTL))
	}
}

func TestLoad_FillsMissingFieldsFromDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  dir: /etc/aegisgate/policies\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Policy.Dir != "/etc/aegisgate/policies" {
		t.Errorf("expected overridden policy dir, got %q", cfg.Policy.Dir)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default server addr to survive, got %q", cfg.Server.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnv_OverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "policy:\n  dir: /etc/aegisgate/policies\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("POLICY_DIR", "/env/policies")
	t.Setenv("OTEL_ENDPOINT", "collector:4317")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected PORT env var to win, got addr %q", cfg.Server.Addr)
	}
	if cfg.Policy.Dir != "/env/policies" {
		t.Errorf("expected POLICY_DIR env var to win over the file, got %q", cfg.Policy.Dir)
	}
	if cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("expected OTEL_ENDPOINT env var to populate tracing endpoint, got %q", cfg.Tracing.Endpoint)
	}
}

func TestDefault_PicksUpEnv(t *testing.T) {
	t.Setenv("PORT", "1234")
	cfg := Default()
	if cfg.Server.Addr != ":1234" {
		t.Errorf("expected Default() to honor PORT, got %q", cfg.Server.Addr)
	}
}

func TestLoad_OverridesCORSAndTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  cors: true\napproval:\n  ttl: 30m\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Server.CORS {
		t.Error("expected CORS to be enabled")
	}
	if time.Duration(cfg.Approval.TTL) != 30*time.Minute {
		t.Errorf("expected overridden TTL of 30m, got %s", time.Duration(cfg.Approval.TTL))
	}
}
