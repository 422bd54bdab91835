// Package hooks runs shell commands around headless exports.
//
// When rp writes a chart or scene snapshot it first runs the project's
// pre-export hooks, then applies the pattern and writes the files, then
// runs the post-export hooks with the match total filled in. Hooks live in
// .rp/hooks.yaml:
//
//	hooks:
//	  pre-export:
//	    - command: mkdir -p out
//	  post-export:
//	    - name: publish
//	      command: cp "$RP_CHART_PATH" /srv/charts/
//	      timeout: 10        # seconds, or a duration such as "1m"
//	      on_error: fail
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase names the point in the export where a hook runs.
type HookPhase string

const (
	PreExport  HookPhase = "pre-export"
	PostExport HookPhase = "post-export"
)

// ErrorPolicy decides what a failing hook does to the export.
type ErrorPolicy string

const (
	// Fail aborts the export before anything is written (pre-export) or
	// makes rp exit non-zero after the files are out (post-export).
	Fail ErrorPolicy = "fail"
	// Continue records the failure in the summary only.
	Continue ErrorPolicy = "continue"
)

// defaultPolicy is Fail before the export, since a missing output
// directory or stale input should stop it, and Continue after.
func (p HookPhase) defaultPolicy() ErrorPolicy {
	if p == PreExport {
		return Fail
	}
	return Continue
}

// DefaultTimeout bounds a hook without its own timeout.
const DefaultTimeout = 30 * time.Second

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Timeout time.Duration     `yaml:"-" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	OnError ErrorPolicy       `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// UnmarshalYAML reads timeout as a duration string or a number of
// seconds; the other fields decode as tagged.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type fields Hook
	var extra struct {
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode((*fields)(h)); err != nil {
		return err
	}
	if err := node.Decode(&extra); err != nil {
		return err
	}
	d, err := parseTimeout(extra.Timeout)
	if err != nil {
		return err
	}
	h.Timeout = d
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like \"5s\" or seconds", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Config is the parsed hooks file.
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase holds the hooks of each phase in run order.
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// For returns the hooks of phase, nil for an unknown phase.
func (h HooksByPhase) For(phase HookPhase) []Hook {
	switch phase {
	case PreExport:
		return h.PreExport
	case PostExport:
		return h.PostExport
	}
	return nil
}

// normalize fills defaults and drops hooks that cannot run, returning
// one warning per problem.
func (c *Config) normalize() []string {
	var warnings []string
	fill := func(phase HookPhase, hooks []Hook) []Hook {
		var kept []Hook
		for i, h := range hooks {
			label := fmt.Sprintf("%s hook %d", phase, i+1)
			if strings.TrimSpace(h.Command) == "" {
				warnings = append(warnings, label+" has empty command; skipping")
				continue
			}
			if h.Name == "" {
				h.Name = fmt.Sprintf("%s-%d", phase, i+1)
			}
			if h.Timeout <= 0 {
				h.Timeout = DefaultTimeout
			}
			switch h.OnError {
			case Fail, Continue:
			case "":
				h.OnError = phase.defaultPolicy()
			default:
				warnings = append(warnings, fmt.Sprintf("%s: unknown on_error %q, using %q", label, h.OnError, phase.defaultPolicy()))
				h.OnError = phase.defaultPolicy()
			}
			kept = append(kept, h)
		}
		return kept
	}
	c.Hooks.PreExport = fill(PreExport, c.Hooks.PreExport)
	c.Hooks.PostExport = fill(PostExport, c.Hooks.PostExport)
	return warnings
}

// ExportContext describes the export to the hooks, as RP_* variables.
type ExportContext struct {
	ChartPath    string
	SnapshotPath string
	Pattern      string // e.g. "A,B -> C"
	MatchTotal   int    // zero until the apply ran
	Timestamp    time.Time
}

// ToEnv renders the context as environment entries.
func (c ExportContext) ToEnv() []string {
	return []string{
		"RP_CHART_PATH=" + c.ChartPath,
		"RP_SNAPSHOT_PATH=" + c.SnapshotPath,
		"RP_PATTERN=" + c.Pattern,
		"RP_MATCH_TOTAL=" + strconv.Itoa(c.MatchTotal),
		"RP_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Loader reads a project's hooks file.
type Loader struct {
	projectDir string
	config     Config
	warnings   []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProjectDir reads .rp/hooks.yaml under dir instead of the working
// directory.
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) { l.projectDir = dir }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}
	return l
}

// Path is the hooks file the loader reads.
func (l *Loader) Path() string {
	return filepath.Join(l.projectDir, ".rp", "hooks.yaml")
}

// Load reads the hooks file. A project without one has no hooks; an
// unreadable or malformed file is an error so a broken export pipeline
// never runs half-configured.
func (l *Loader) Load() error {
	l.config, l.warnings = Config{}, nil

	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading hooks config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", l.Path(), err)
	}
	l.warnings = cfg.normalize()
	l.config = cfg
	return nil
}

// Config returns the loaded hooks.
func (l *Loader) Config() *Config {
	cfg := l.config
	return &cfg
}

// HasHooks reports whether any phase has a hook to run.
func (l *Loader) HasHooks() bool {
	return len(l.config.Hooks.PreExport)+len(l.config.Hooks.PostExport) > 0
}

// GetHooks returns the hooks of phase.
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	return l.config.Hooks.For(phase)
}

// Warnings lists hooks that were skipped or adjusted while loading.
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault loads the hooks of the working directory.
func LoadDefault() (*Loader, error) {
	l := NewLoader()
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}
