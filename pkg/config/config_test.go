package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
events:
  file_path: /tmp/events.jsonl
windows:
  catalog:
    - name: post_1h
      offset_minutes: 60
benchmarks:
  primary: market
  groups:
    - name: market
      tickers: [SPY]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8087 {
		t.Fatalf("port = %d", c.Server.Port)
	}
	if c.Events.Source != "file" {
		t.Fatalf("source = %s", c.Events.Source)
	}
	if c.Pipeline.Workers != 8 || c.Pipeline.DefaultToleranceMinutes != 5 {
		t.Fatalf("pipeline defaults = %+v", c.Pipeline)
	}
	if c.Pipeline.StoreTimeout != 15*time.Second {
		t.Fatalf("store timeout = %v", c.Pipeline.StoreTimeout)
	}
	if c.Export.Backend != "clickhouse" {
		t.Fatalf("backend = %s", c.Export.Backend)
	}
	if c.Calendar.MIC != "xnys" || c.Calendar.Open != "09:30" {
		t.Fatalf("calendar defaults = %+v", c.Calendar)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML+`
pipeline:
  workers: 2
  volume_spike_threshold: 4.5
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Pipeline.Workers != 2 {
		t.Fatalf("workers = %d", c.Pipeline.Workers)
	}
	if c.Pipeline.VolumeSpikeThreshold != 4.5 {
		t.Fatalf("spike threshold = %v", c.Pipeline.VolumeSpikeThreshold)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing file", "does-not-exist"},
		{"kafka backend without brokers", minimalYAML + "\nexport:\n  backend: kafka\n"},
		{"file source without path", `
windows:
  catalog:
    - name: w
      offset_minutes: 5
benchmarks:
  primary: market
  groups:
    - name: market
      tickers: [SPY]
`},
		{"bad source enum", `
events:
  source: carrier-pigeon
  file_path: /tmp/events.jsonl
windows:
  catalog:
    - name: post_1h
      offset_minutes: 60
benchmarks:
  primary: market
  groups:
    - name: market
      tickers: [SPY]
`},
		{"empty catalog", `
events:
  file_path: /tmp/events.jsonl
benchmarks:
  primary: market
  groups:
    - name: market
      tickers: [SPY]
`},
		{"group without tickers", `
events:
  file_path: /tmp/events.jsonl
windows:
  catalog:
    - name: post_1h
      offset_minutes: 60
benchmarks:
  primary: market
  groups:
    - name: market
      tickers: []
`},
	}
	for _, tc := range cases {
		path := tc.body
		if tc.name != "missing file" {
			path = writeConfig(t, tc.body)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: load must fail", tc.name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("BATCH_ID", "replay-2025-03")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("redis addr = %s", c.Redis.Addr)
	}
	if c.Pipeline.BatchID != "replay-2025-03" {
		t.Fatalf("batch id = %s", c.Pipeline.BatchID)
	}
}
