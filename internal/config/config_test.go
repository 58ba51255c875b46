package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.WebSocket.QueueCapacity != 1000 {
		t.Errorf("QueueCapacity = %d, want 1000", cfg.WebSocket.QueueCapacity)
	}
	if cfg.WebSocket.CacheCapacity != 100 {
		t.Errorf("CacheCapacity = %d, want 100", cfg.WebSocket.CacheCapacity)
	}
	if time.Duration(cfg.WebSocket.OpenTimeout) != 600*time.Second {
		t.Errorf("OpenTimeout = %v, want 600s", time.Duration(cfg.WebSocket.OpenTimeout))
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing file", err)
	}
	if cfg != Default() {
		t.Fatalf("Load() on a missing file = %+v, want Default()", cfg)
	}
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
log_level: debug
database:
  host: db.internal
  port: 5433
  user: bot
  password: secret
  dbname: bot_db
  sslmode: require
http:
  timeout: 45s
  retry:
    attempts: 5
    start: 200ms
    factor: 1.5
    max: 10s
websocket:
  open_timeout: 120s
  queue_capacity: 500
  cache_capacity: 50
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if time.Duration(cfg.HTTP.Timeout) != 45*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 45s", time.Duration(cfg.HTTP.Timeout))
	}
	if cfg.HTTP.Retry.Attempts != 5 {
		t.Errorf("Retry.Attempts = %d, want 5", cfg.HTTP.Retry.Attempts)
	}
	if time.Duration(cfg.HTTP.Retry.Start) != 200*time.Millisecond {
		t.Errorf("Retry.Start = %v, want 200ms", time.Duration(cfg.HTTP.Retry.Start))
	}
	if cfg.WebSocket.QueueCapacity != 500 {
		t.Errorf("QueueCapacity = %d, want 500", cfg.WebSocket.QueueCapacity)
	}

	backoffCfg := cfg.HTTP.Retry.ToBackoff()
	if backoffCfg.Attempts != 5 || backoffCfg.InitialInterval != 200*time.Millisecond {
		t.Errorf("ToBackoff() = %+v, did not carry YAML values through", backoffCfg)
	}
}

func TestDatabaseConfigDSNExpandsEnvSecret(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "!!env:TEST_DB_PASSWORD", DBName: "d", SSLMode: "disable"}
	dsn, err := d.DSN()
	if err != nil {
		t.Fatal(err)
	}
	want := "postgres://u:hunter2@h:5432/d?sslmode=disable"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}

func TestPathFromEnvHonorsOverride(t *testing.T) {
	t.Setenv("POLEBOT_CONFIG", "/custom/path.yaml")
	if got := PathFromEnv("config/polebot.yaml"); got != "/custom/path.yaml" {
		t.Errorf("PathFromEnv() = %q, want override", got)
	}
}

func TestPathFromEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("POLEBOT_CONFIG", "")
	if got := PathFromEnv("config/polebot.yaml"); got != "config/polebot.yaml" {
		t.Errorf("PathFromEnv() = %q, want default", got)
	}
}
