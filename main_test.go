package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"hookfeed/pkg/event"
)

func TestWriteNormalizedMerge(t *testing.T) {
	at := time.Date(2024, time.March, 9, 17, 5, 0, 0, time.UTC)
	var out bytes.Buffer
	body := []byte(`{"action":"closed","pull_request":{"merged":true,"merged_by":{"login":"carol"},"head":{"ref":"feature"},"base":{"ref":"main"}}}`)
	if err := writeNormalized(&out, event.NewNormalizer(event.FixedClock(at)), "pull_request", body); err != nil {
		t.Fatalf("write normalized: %v", err)
	}
	var record event.Record
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Action != event.ActionMerge || record.Author != "carol" || !record.Timestamp.Equal(at) {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestWriteNormalizedIgnored(t *testing.T) {
	var out bytes.Buffer
	if err := writeNormalized(&out, event.NewNormalizer(nil), "ping", []byte(`{}`)); err != nil {
		t.Fatalf("write normalized: %v", err)
	}
	var status map[string]string
	if err := json.Unmarshal(out.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["status"] != "ignored" {
		t.Fatalf("expected ignored, got %v", status)
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MONGODB_URI", "")
	t.Chdir(t.TempDir())

	prev := configPath
	defer func() { configPath = prev }()

	configPath = defaultConfigPath
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected defaults when config.yaml is absent: %v", err)
	}
	if cfg.Server.Port != 5001 || cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg.AppConfig)
	}

	configPath = filepath.Join(t.TempDir(), "custom.yaml")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
