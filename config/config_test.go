package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `http:
  addr: ":9000"
  alert_grace: 30m
  auth:
    jwt_secret: "s3cret"
engine:
  lock_timeout: 500ms
storage:
  backend: sqlite
  path: "/var/lib/dutysched/fleet.db"
journal:
  enabled: true
  store:
    type: rotating
    conf:
      path: "journal.jsonl"
      max_size_mb: 5
metrics:
  summary_interval_seconds: 15
  sinks:
    - type: "nop"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "depot"
scheduler:
  enabled: true
  tick_seconds: 5
sentry:
  dsn: "https://key@sentry.example.com/1"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"http.alert_grace", cfg.HTTP.AlertGrace, 30 * time.Minute},
		{"http.auth.jwt_secret", cfg.HTTP.Auth.JWTSecret, "s3cret"},
		{"http.auth.issuer", cfg.HTTP.Auth.Issuer, "dutysched"},
		{"http.metrics_path", cfg.HTTP.MetricsPath, "/metrics"},
		{"engine.lock_timeout", cfg.Engine.LockTimeout, 500 * time.Millisecond},
		{"storage.backend", cfg.Storage.Backend, StorageSQLite},
		{"storage.path", cfg.Storage.Path, "/var/lib/dutysched/fleet.db"},
		{"journal.enabled", cfg.Journal.Enabled, true},
		{"journal.store.type", cfg.Journal.Store.Type, "rotating"},
		{"journal.buffer", cfg.Journal.Buffer, 256},
		{"metrics.summary_interval_seconds", cfg.Metrics.SummaryIntervalSeconds, 15},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "depot"},
		{"scheduler.tick_seconds", cfg.Scheduler.TickSeconds, 5},
		{"sentry.dsn", cfg.Sentry.DSN, "https://key@sentry.example.com/1"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Storage.Backend != StorageMemory || cfg.Engine.LockTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Journal.Store.Type != "memory" || cfg.Logging.Level != "info" || cfg.Scheduler.TickSeconds != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http":{"addr":":9000"},"logging":{"level":"warn"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_HTTP__ADDR", ":7000")
	t.Setenv("K_STORAGE__BACKEND", "sqlite")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.HTTP.Addr != ":7000" {
		t.Errorf("env override ignored: %s", cfg.HTTP.Addr)
	}
	if cfg.Storage.Backend != StorageSQLite || cfg.Storage.Path != "dutysched.db" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("file value lost: %s", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"storage": "storage:\n  backend: postgres\n",
		"logging": "logging:\n  level: loud\n",
		"mqtt":    "mqtt:\n  enabled: true\n",
	}
	for section, data := range cases {
		path := filepath.Join(dir, section+".yaml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), section+":") {
			t.Errorf("%s: expected validation error, got %v", section, err)
		}
	}
	if _, err := Load(filepath.Join(dir, "config.toml")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
