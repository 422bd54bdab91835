package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Layout.Name != "layered" {
		t.Errorf("expected default layout 'layered', got %q", cfg.Layout.Name)
	}
	if cfg.Chart.Height != 250 {
		t.Errorf("expected chart height 250, got %d", cfg.Chart.Height)
	}
	if cfg.Pattern.ResetOnOpen {
		t.Error("expected selections to persist across openings by default")
	}
	if cfg.Pattern.DedupCount {
		t.Error("expected per-seed counting by default")
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Chart.Format != "svg" {
		t.Errorf("expected default config, got chart format %q", cfg.Chart.Format)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
source:
  type: sqlite
  path: ~/graphs/history.db
pattern:
  reset_on_open: true
  dedup_count: true
layout:
  name: grid
chart:
  height: 300
watch:
  enabled: true
metrics:
  addr: ":9464"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "graphs/history.db"); cfg.Source.Path != want {
		t.Errorf("expected expanded path %q, got %q", want, cfg.Source.Path)
	}
	if cfg.Source.Type != "sqlite" {
		t.Errorf("expected sqlite source, got %q", cfg.Source.Type)
	}
	if !cfg.Pattern.ResetOnOpen || !cfg.Pattern.DedupCount {
		t.Errorf("pattern flags not loaded: %+v", cfg.Pattern)
	}
	if cfg.Layout.Name != "grid" {
		t.Errorf("expected layout 'grid', got %q", cfg.Layout.Name)
	}
	// Partial sections keep defaults for unset fields
	if cfg.Layout.Padding != 36 {
		t.Errorf("expected default padding 36, got %v", cfg.Layout.Padding)
	}
	if cfg.Chart.Height != 300 || cfg.Chart.Width != 800 {
		t.Errorf("unexpected chart config %+v", cfg.Chart)
	}
	if !cfg.Watch.Enabled || cfg.Watch.DebounceMs != 200 {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("expected metrics addr, got %q", cfg.Metrics.Addr)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source = SourceConfig{Type: "json", Path: "/data/graph.json"}
	cfg.Pattern.ResetOnOpen = true

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Source != cfg.Source {
		t.Errorf("source mismatch: %+v vs %+v", loaded.Source, cfg.Source)
	}
	if !loaded.Pattern.ResetOnOpen {
		t.Error("reset_on_open lost in round trip")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RP_DATA", "/tmp/elements.json")
	t.Setenv("RP_SOURCE", "JSON")
	t.Setenv("RP_RESET_ON_OPEN", "yes")
	t.Setenv("RP_DEDUP_COUNT", "0")
	t.Setenv("RP_WATCH", "on")
	t.Setenv("RP_METRICS_ADDR", "127.0.0.1:9000")

	cfg := DefaultConfig()
	cfg.Pattern.DedupCount = true
	cfg.ApplyEnv()

	if cfg.Source.Path != "/tmp/elements.json" || cfg.Source.Type != "json" {
		t.Errorf("source not overridden: %+v", cfg.Source)
	}
	if !cfg.Pattern.ResetOnOpen {
		t.Error("RP_RESET_ON_OPEN not applied")
	}
	if cfg.Pattern.DedupCount {
		t.Error("RP_DEDUP_COUNT=0 should disable dedup")
	}
	if !cfg.Watch.Enabled {
		t.Error("RP_WATCH not applied")
	}
	if cfg.Metrics.Addr != "127.0.0.1:9000" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestApplyEnv_IgnoresGarbageBool(t *testing.T) {
	t.Setenv("RP_RESET_ON_OPEN", "maybe")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Pattern.ResetOnOpen {
		t.Error("unparseable bool should leave the value untouched")
	}
}

func TestConfigDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	if got := ConfigPath(); got != "/xdg/config/rolepattern/config.yaml" {
		t.Errorf("ConfigPath() = %q", got)
	}
	if got := StateDir(); got != "/xdg/state/rolepattern" {
		t.Errorf("StateDir() = %q", got)
	}
}
