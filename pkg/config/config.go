// Package config handles loading and saving rolepattern configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/rolepattern/config.yaml
//   - State:  ~/.local/state/rolepattern/ (exports, profiles)
//
// Precedence is CLI flag > RP_* environment variable > config file > default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const appDir = "rolepattern"

// SourceConfig selects where graph elements and versions come from.
type SourceConfig struct {
	Type string `yaml:"type,omitempty"` // json, sqlite; inferred from Path when empty
	Path string `yaml:"path,omitempty"`
}

// PatternConfig holds selector behaviour switches.
type PatternConfig struct {
	// ResetOnOpen resets level and role selections every time the dialog
	// opens. Off by default: selections persist across openings.
	ResetOnOpen bool `yaml:"reset_on_open,omitempty"`
	// DedupCount counts level-3 matches from the deduplicated element union
	// instead of accumulating per seed edge.
	DedupCount bool `yaml:"dedup_count,omitempty"`
}

// LayoutConfig is passed to the render engine on every layout re-run.
type LayoutConfig struct {
	Name    string  `yaml:"name,omitempty"` // layered, grid
	Padding float64 `yaml:"padding,omitempty"`
	Spacing float64 `yaml:"spacing,omitempty"`
}

// ChartConfig controls exported chart dimensions.
type ChartConfig struct {
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Format string `yaml:"format,omitempty"` // svg, png
}

// WatchConfig controls live reload of file-backed sources.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled,omitempty"`
	DebounceMs int  `yaml:"debounce_ms,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source,omitempty"`
	Pattern PatternConfig `yaml:"pattern,omitempty"`
	Layout  LayoutConfig  `yaml:"layout,omitempty"`
	Chart   ChartConfig   `yaml:"chart,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Layout: LayoutConfig{
			Name:    "layered",
			Padding: 36,
			Spacing: 60,
		},
		Chart: ChartConfig{
			Width:  800,
			Height: 250,
			Format: "svg",
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDir)
}

// StateDir returns the XDG state directory.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appDir)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// RP_* environment overrides. Returns DefaultConfig if the file doesn't
// exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	cfg.ApplyEnv()
	return cfg, err
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source.Path = expandHome(cfg.Source.Path)
	cfg.fillDefaults()
	return cfg, nil
}

// ApplyEnv overlays RP_* environment variables onto cfg.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("RP_DATA")); v != "" {
		c.Source.Path = expandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv("RP_SOURCE")); v != "" {
		c.Source.Type = strings.ToLower(v)
	}
	if v, ok := envBool("RP_RESET_ON_OPEN"); ok {
		c.Pattern.ResetOnOpen = v
	}
	if v, ok := envBool("RP_DEDUP_COUNT"); ok {
		c.Pattern.DedupCount = v
	}
	if v, ok := envBool("RP_WATCH"); ok {
		c.Watch.Enabled = v
	}
	if v := strings.TrimSpace(os.Getenv("RP_METRICS_ADDR")); v != "" {
		c.Metrics.Addr = v
	}
}

// fillDefaults restores zero values a partial file may have left behind.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Layout.Name == "" {
		c.Layout.Name = def.Layout.Name
	}
	if c.Layout.Padding <= 0 {
		c.Layout.Padding = def.Layout.Padding
	}
	if c.Layout.Spacing <= 0 {
		c.Layout.Spacing = def.Layout.Spacing
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = def.Chart.Width
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = def.Chart.Height
	}
	if c.Chart.Format == "" {
		c.Chart.Format = def.Chart.Format
	}
	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = def.Watch.DebounceMs
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func envBool(name string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, true
	}
	return false, false
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
