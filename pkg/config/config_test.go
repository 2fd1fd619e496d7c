package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TTL(); got != 5*time.Minute {
		t.Fatalf("TTL = %v; want 5m", got)
	}
	if got := cfg.SweepInterval(); got != time.Minute {
		t.Fatalf("SweepInterval = %v; want 1m", got)
	}
	if got := cfg.MaxUploadBytes(); got != 10*1024*1024 {
		t.Fatalf("MaxUploadBytes = %d; want 10MB", got)
	}
	if got := cfg.Addr(); got != ":8000" {
		t.Fatalf("Addr = %q; want :8000", got)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: 127.0.0.1
  port: 9000
storage:
  db_path: /tmp/m5chat-db
  max_upload_size: 2MB
chat:
  ttl: 90s
  sweep_interval: 10s
  greeting: hello there
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Fatalf("Addr = %q", got)
	}
	if got := cfg.TTL(); got != 90*time.Second {
		t.Fatalf("TTL = %v", got)
	}
	if got := cfg.SweepInterval(); got != 10*time.Second {
		t.Fatalf("SweepInterval = %v", got)
	}
	if got := cfg.MaxUploadBytes(); got != 2_000_000 {
		t.Fatalf("MaxUploadBytes = %d", got)
	}
	if got := cfg.Greeting(); got != "hello there" {
		t.Fatalf("Greeting = %q", got)
	}
	if got := cfg.DBPath(); got != "/tmp/m5chat-db" {
		t.Fatalf("DBPath = %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("M5CHAT_TTL", "30s")
	t.Setenv("M5CHAT_ADDR", ":7777")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TTL(); got != 30*time.Second {
		t.Fatalf("TTL = %v; want 30s", got)
	}
	if got := cfg.Addr(); got != ":7777" {
		t.Fatalf("Addr = %q; want :7777", got)
	}
}

func TestEnvOverridesChatAndStorage(t *testing.T) {
	t.Setenv("M5CHAT_SWEEP_CRON", "*/5 * * * *")
	t.Setenv("M5CHAT_GREETING", "welcome")
	t.Setenv("M5CHAT_MAX_UPLOAD_SIZE", "1MB")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Chat.SweepCron; got != "*/5 * * * *" {
		t.Fatalf("SweepCron = %q", got)
	}
	if got := cfg.Greeting(); got != "welcome" {
		t.Fatalf("Greeting = %q", got)
	}
	if got := cfg.MaxUploadBytes(); got != 1_000_000 {
		t.Fatalf("MaxUploadBytes = %d; want 1MB", got)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chat:\n  ttl: nonsense\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load accepted invalid ttl")
	}
}
