package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "MONGODB_URI", "MONGODB_DB", "FLASK_DEBUG", "HOOKFEED_DEBUG"} {
		t.Setenv(key, "")
	}
}

// TestLoadConfigDefaults tests that the default values are applied correctly when loading a config.
func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 5001 {
		t.Fatalf("expected default port 5001, got %d", cfg.Server.Port)
	}
	if cfg.Server.WebhookPath != "/webhook" {
		t.Fatalf("expected default webhook path, got %q", cfg.Server.WebhookPath)
	}
	if cfg.Server.Debug {
		t.Fatalf("expected debug to be off by default")
	}
	if cfg.Storage.Driver != "memory" || cfg.Storage.Table != "events" || cfg.Storage.Database != "github_webhooks" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if !cfg.Storage.Migrate() {
		t.Fatalf("expected auto migrate by default")
	}
	if cfg.Query.Limit != 100 {
		t.Fatalf("expected default query limit 100, got %d", cfg.Query.Limit)
	}
	if cfg.Publish.Enabled || cfg.Publish.Topic != "hookfeed.events" {
		t.Fatalf("unexpected publish defaults: %+v", cfg.Publish)
	}
	if cfg.Publish.Watermill.Driver != "gochannel" {
		t.Fatalf("expected default watermill driver, got %q", cfg.Publish.Watermill.Driver)
	}
	if cfg.Publish.Watermill.HTTP.Mode != "topic_url" {
		t.Fatalf("expected default http mode topic_url, got %q", cfg.Publish.Watermill.HTTP.Mode)
	}
	if cfg.Publish.DispatchTimeoutMS != 2000 {
		t.Fatalf("expected default dispatch timeout, got %d", cfg.Publish.DispatchTimeoutMS)
	}
	if cfg.Publish.Watermill.PublishRetry.Attempts != 3 {
		t.Fatalf("expected default publish retry attempts, got %d", cfg.Publish.Watermill.PublishRetry.Attempts)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOOKFEED_TEST_DSN", "file:events.db")
	content := "storage:\n  driver: sqlite\n  dsn: ${HOOKFEED_TEST_DSN}\n  auto_migrate: false\nserver:\n  port: 9000\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.DSN != "file:events.db" {
		t.Fatalf("expected expanded dsn, got %q", cfg.Storage.DSN)
	}
	if cfg.Storage.Migrate() {
		t.Fatalf("expected auto_migrate false to be honored")
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Server.Port)
	}
}

// TestDefaultConfigEnvFallbacks tests the environment variables honored without a config file.
func TestDefaultConfigEnvFallbacks(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/")
	t.Setenv("MONGODB_DB", "hooks")
	t.Setenv("FLASK_DEBUG", "true")

	cfg := DefaultConfig()
	if cfg.Server.Port != 7000 {
		t.Fatalf("expected PORT fallback, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "mongodb" || cfg.Storage.DSN != "mongodb://localhost:27017/" {
		t.Fatalf("expected mongodb storage from MONGODB_URI, got %+v", cfg.Storage)
	}
	if cfg.Storage.Database != "hooks" {
		t.Fatalf("expected MONGODB_DB fallback, got %q", cfg.Storage.Database)
	}
	if !cfg.Server.Debug {
		t.Fatalf("expected FLASK_DEBUG to enable debug")
	}
}

func TestLoadConfigFileWinsOverEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("MONGODB_URI", "mongodb://ignored/")
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 8081\nstorage:\n  driver: redis\n  redis:\n    addr: localhost:6379\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("expected file port, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.DSN != "" {
		t.Fatalf("expected redis storage from file, got %+v", cfg.Storage)
	}
}

// TestLoadConfigInvalidRule tests that loading a config with an invalid rule returns an error.
func TestLoadConfigInvalidRule(t *testing.T) {
	clearConfigEnv(t)
	content := "rules:\n  - when: action == \"merge\"\n"
	if _, err := LoadConfig(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing emit")
	}
}

// TestLoadConfigTrimsFields tests that the fields in a rule are trimmed correctly.
func TestLoadConfigTrimsFields(t *testing.T) {
	clearConfigEnv(t)
	content := "rules:\n  - when: \"  action == \\\"merge\\\"  \"\n    emit: \"  records.merged  \"\n    drivers: [\" amqp \", \"\"]\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Rules[0].When != "action == \"merge\"" {
		t.Fatalf("expected trimmed when, got %q", cfg.Rules[0].When)
	}
	if cfg.Rules[0].Emit != "records.merged" {
		t.Fatalf("expected trimmed emit, got %q", cfg.Rules[0].Emit)
	}
	if len(cfg.Rules[0].Drivers) != 1 || cfg.Rules[0].Drivers[0] != "amqp" {
		t.Fatalf("expected trimmed drivers, got %v", cfg.Rules[0].Drivers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
