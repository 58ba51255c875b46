// Package config loads the static, process-wide settings (spec SPEC_FULL.md
// §A.3): logging level, database connection, HTTP timeout/retry, and
// WebSocket tuning. Per-server records are data, not config — they live in
// internal/db, loaded and mutated at runtime through internal/orchestrator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bwcc-clan/polebot-go/internal/backoff"
	"github.com/bwcc-clan/polebot-go/internal/convert"
)

// Duration parses YAML duration strings like "30s" or "100ms" into a
// time.Duration, rather than the bare integer-nanosecond yaml.v3 falls back
// to for an un-adorned time.Duration field.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error (default: info)
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` // may be "!!env:NAME"
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string, expanding an !!env: marker
// in Password if present.
func (d DatabaseConfig) DSN() (string, error) {
	password, err := convert.ExpandEnvSecret(d.Password)
	if err != nil {
		return "", fmt.Errorf("expanding database password: %w", err)
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, password, d.Host, d.Port, d.DBName, d.SSLMode,
	), nil
}

// HTTPConfig tunes the CRCON API client (spec §4.1).
type HTTPConfig struct {
	Timeout Duration    `yaml:"timeout"`
	Retry   RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors backoff.RetryConfig with YAML-parseable durations.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Start    Duration `yaml:"start"`
	Factor   float64  `yaml:"factor"`
	Max      Duration `yaml:"max"`
}

// ToBackoff converts to the type internal/apiclient actually consumes.
func (r RetryConfig) ToBackoff() backoff.RetryConfig {
	return backoff.RetryConfig{
		Attempts:        r.Attempts,
		InitialInterval: time.Duration(r.Start),
		Multiplier:      r.Factor,
		MaxInterval:     time.Duration(r.Max),
	}
}

// WebSocketConfig tunes the log-stream client and the controller queue/cache
// sizing (spec §4.2, §4.6).
type WebSocketConfig struct {
	OpenTimeout   Duration `yaml:"open_timeout"`
	QueueCapacity int      `yaml:"queue_capacity"`
	CacheCapacity int      `yaml:"cache_capacity"`
}

// Default returns a Config with the values documented in SPEC_FULL.md §A.3.
func Default() Config {
	return Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "polebot",
			DBName:  "polebot",
			SSLMode: "disable",
		},
		HTTP: HTTPConfig{
			Timeout: Duration(30 * time.Second),
			Retry: RetryConfig{
				Attempts: 3,
				Start:    Duration(100 * time.Millisecond),
				Factor:   2.0,
				Max:      Duration(30 * time.Second),
			},
		},
		WebSocket: WebSocketConfig{
			OpenTimeout:   Duration(600 * time.Second),
			QueueCapacity: 1000,
			CacheCapacity: 100,
		},
	}
}

// Load reads config from a YAML file, overlaying it onto Default(). A
// missing file is not an error; Load returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// PathFromEnv resolves the config file path, honoring a POLEBOT_CONFIG
// override of the given default path (mirrors the teacher's
// LA2GO_CONFIG-env-override pattern).
func PathFromEnv(defaultPath string) string {
	if p := strings.TrimSpace(os.Getenv("POLEBOT_CONFIG")); p != "" {
		return p
	}
	return defaultPath
}
