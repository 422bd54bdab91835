package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/rolepattern/pkg/config"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
	"github.com/vanderheijden86/rolepattern/pkg/recipe"
	"github.com/vanderheijden86/rolepattern/pkg/testutil"
	"github.com/vanderheijden86/rolepattern/pkg/version"
)

func writeChain(t *testing.T) string {
	t.Helper()
	return testutil.WriteDocumentFile(t, t.TempDir(), "graph.json", testutil.QuickChain(4))
}

func headlessApp(t *testing.T, opts cliOptions) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Source.Path = writeChain(t)
	a, err := newApp(context.Background(), cfg, opts, false)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestParseFlags(t *testing.T) {
	opts, _, err := parseFlags([]string{"--data", "g.json", "--roles", "A|B", "--json"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.dataPath != "g.json" || opts.roles != "A|B" || !opts.jsonOut {
		t.Errorf("opts = %+v", opts)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"level too high", []string{"--level", "4"}},
		{"negative level", []string{"--level", "-1"}},
		{"positional argument", []string{"graph.json"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parseFlags(tt.args, io.Discard); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, _, err := parseFlags([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h should return flag.ErrHelp, got %v", err)
	}
}

func TestHeadlessDecision(t *testing.T) {
	tests := []struct {
		opts cliOptions
		tty  bool
		want bool
	}{
		{cliOptions{}, true, false},
		{cliOptions{}, false, true},
		{cliOptions{jsonOut: true}, true, true},
		{cliOptions{chartPath: "c.svg"}, true, true},
		{cliOptions{snapshotPath: "s.png"}, true, true},
		{cliOptions{watch: true}, true, false},
	}
	for _, tt := range tests {
		if got := tt.opts.headless(tt.tty); got != tt.want {
			t.Errorf("headless(%+v, tty=%v) = %v, want %v", tt.opts, tt.tty, got, tt.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source = config.SourceConfig{Type: "sqlite", Path: "old.db"}
	applyFlags(&cfg, cliOptions{dataPath: "new.json", metricsAddr: ":9464", watch: true, dedupCount: true})

	if cfg.Source.Path != "new.json" || cfg.Source.Type != "" {
		t.Errorf("--data should replace the configured source and clear its type: %+v", cfg.Source)
	}
	if cfg.Metrics.Addr != ":9464" || !cfg.Watch.Enabled || !cfg.Pattern.DedupCount {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Pattern.ResetOnOpen {
		t.Error("reset-on-open should stay off")
	}

	applyFlags(&cfg, cliOptions{sourceType: "JSON"})
	if cfg.Source.Type != "json" {
		t.Errorf("source type = %q", cfg.Source.Type)
	}
}

func TestBuildPattern(t *testing.T) {
	universe := []string{"A", "B", "C"}
	tests := []struct {
		roles   string
		level   int
		want    string
		wantErr bool
	}{
		{"", 0, "A,B,C", false},
		{"", 2, "A,B,C -> A,B,C", false},
		{"A|B", 0, "A -> B", false},
		{"A|B", 3, "A -> B -> A,B,C", false},
		{"A|B|C", 2, "", true},
		{"A|B|C|A", 0, "", true},
	}
	for _, tt := range tests {
		p, err := buildPattern(tt.roles, tt.level, universe)
		if (err != nil) != tt.wantErr {
			t.Errorf("buildPattern(%q, %d) err = %v", tt.roles, tt.level, err)
			continue
		}
		if err == nil && p.String() != tt.want {
			t.Errorf("buildPattern(%q, %d) = %q, want %q", tt.roles, tt.level, p.String(), tt.want)
		}
	}
}

func TestResolvePattern(t *testing.T) {
	universe := []string{"A", "B", "C"}
	recipes := recipe.NewLoader(recipe.WithUserPath(""), recipe.WithProjectDir(""))
	if err := recipes.Load(); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	if _, ok, err := resolvePattern(cliOptions{}, &cfg, recipes, universe); ok || err != nil {
		t.Fatalf("no flags: ok=%v err=%v", ok, err)
	}

	p, ok, err := resolvePattern(cliOptions{recipe: "chains-distinct"}, &cfg, recipes, universe)
	if !ok || err != nil {
		t.Fatalf("recipe: ok=%v err=%v", ok, err)
	}
	if p.Level != 3 || !cfg.Pattern.DedupCount {
		t.Errorf("chains-distinct gave level %d dedup %v", p.Level, cfg.Pattern.DedupCount)
	}

	cfg = config.DefaultConfig()
	p, _, err = resolvePattern(cliOptions{recipe: "chains", roles: "A"}, &cfg, recipes, universe)
	if err != nil || p.String() != "A" {
		t.Errorf("--roles should win over --recipe, got %q (%v)", p.String(), err)
	}

	if _, _, err := resolvePattern(cliOptions{recipe: "nope"}, &cfg, recipes, universe); err == nil || !strings.Contains(err.Error(), "chains") {
		t.Errorf("unknown recipe error should list names, got %v", err)
	}
}

func TestRunListRecipes(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var out, errb bytes.Buffer
	if code := run([]string{"--list-recipes"}, &out, &errb); code != 0 {
		t.Fatalf("exit = %d: %s", code, errb.String())
	}
	for _, name := range []string{"default", "pairs", "chains-distinct", "[builtin]"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("listing missing %q:\n%s", name, out.String())
		}
	}
}

func TestChartFormat(t *testing.T) {
	if got := chartFormat("out.png", "svg"); got != "" {
		t.Errorf("extension should win, got %q", got)
	}
	if got := chartFormat("out", "png"); got != "png" {
		t.Errorf("configured format expected, got %q", got)
	}
}

func TestNewAppAppliesRoles(t *testing.T) {
	a := headlessApp(t, cliOptions{roles: "A|B"})
	want := pattern.NewPattern(pattern.NewRoleSet("A"), pattern.NewRoleSet("B"))
	if got := a.session.State().Snapshot(); got.String() != want.String() {
		t.Errorf("state pattern = %s, want %s", got, want)
	}
	if n := len(a.scene.Nodes()); n != 4 {
		t.Errorf("scene should hold the latest version only, got %d nodes", n)
	}
	if a.renderer != nil {
		t.Error("headless run without --chart needs no renderer")
	}
}

func TestRunHeadlessJSON(t *testing.T) {
	opts := cliOptions{roles: "A|B", jsonOut: true}
	a := headlessApp(t, opts)

	var buf bytes.Buffer
	if err := runHeadless(context.Background(), a, opts, &buf); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	var rep report
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, buf.String())
	}
	if rep.Pattern != "A -> B" || rep.Level != 2 || rep.Total != 3 || len(rep.Results) != 3 {
		t.Errorf("report = %+v", rep)
	}
	for _, r := range rep.Results {
		if r.Count != 1 {
			t.Errorf("version %s: count %d, want 1", r.Version, r.Count)
		}
	}
	if rep.Visible != (visibleCounts{Nodes: 2, Edges: 1, Hidden: 4}) {
		t.Errorf("visible = %+v", rep.Visible)
	}
	if rep.RequestID == "" {
		t.Error("request ID missing")
	}
	if metrics.Enabled() {
		steps := make(map[string]int64)
		for _, st := range rep.Timings {
			steps[st.Name] = st.Count
		}
		for _, name := range []string{"fetch", "evaluate", "project", "layout"} {
			if steps[name] == 0 {
				t.Errorf("timings missing %s step: %+v", name, rep.Timings)
			}
		}
	}
}

func TestRunHeadlessWritesFiles(t *testing.T) {
	dir := t.TempDir()
	opts := cliOptions{
		roles:        "A",
		chartPath:    filepath.Join(dir, "chart.svg"),
		snapshotPath: filepath.Join(dir, "scene.png"),
	}
	a := headlessApp(t, opts)

	var buf bytes.Buffer
	if err := runHeadless(context.Background(), a, opts, &buf); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	svg, err := os.ReadFile(opts.chartPath)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("chart is not an SVG")
	}
	png, err := os.ReadFile(opts.snapshotPath)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("snapshot is not a PNG")
	}

	out := buf.String()
	for _, want := range []string{"Pattern: A (level 1)", "Version  Count", "Total: 6 across 3 versions", "Chart: ", "Snapshot: "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextFetchError(t *testing.T) {
	var buf bytes.Buffer
	writeText(&buf, report{Pattern: "A", Level: 1, FetchError: "boom"})
	out := buf.String()
	if !strings.Contains(out, "Warning: data unavailable") || !strings.Contains(out, "No versions.") {
		t.Errorf("output = %q", out)
	}
}

func TestRunImport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Path = writeChain(t)
	db := filepath.Join(t.TempDir(), "graph.db")

	var out, errb bytes.Buffer
	if code := runImport(context.Background(), cfg, db, &out, &errb); code != 0 {
		t.Fatalf("runImport = %d, stderr: %s", code, errb.String())
	}
	if !strings.Contains(out.String(), "Sources match") {
		t.Errorf("output = %q", out.String())
	}

	cfg.Source.Path = db
	if code := runImport(context.Background(), cfg, db, &out, &errb); code != 2 {
		t.Errorf("importing from a SQLite store should be rejected, got %d", code)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	var out, errb bytes.Buffer
	if code := run([]string{"--version"}, &out, &errb); code != 0 {
		t.Fatalf("--version exit = %d", code)
	}
	if got := strings.TrimSpace(out.String()); got != "rp "+version.Version {
		t.Errorf("version output = %q", got)
	}

	out.Reset()
	if code := run([]string{"--help"}, &out, &errb); code != 0 {
		t.Fatalf("--help exit = %d", code)
	}
	if !strings.Contains(out.String(), "Usage: rp") || !strings.Contains(out.String(), "-roles") {
		t.Errorf("help output = %q", out.String())
	}

	if code := run([]string{"--level", "9"}, &out, &errb); code != 2 {
		t.Errorf("bad flag exit = %d, want 2", code)
	}
}

func TestServeMetrics(t *testing.T) {
	a := headlessApp(t, cliOptions{})
	stop, err := serveMetrics("", a.collector, io.Discard)
	if err != nil {
		t.Fatalf("empty addr: %v", err)
	}
	stop()

	stop, err = serveMetrics("127.0.0.1:0", a.collector, io.Discard)
	if err != nil {
		t.Fatalf("serveMetrics: %v", err)
	}
	stop()
}

func TestApplyOnceRunsExportHooks(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".rp"), 0o755); err != nil {
		t.Fatal(err)
	}
	hooksYAML := "hooks:\n  post-export:\n    - name: total\n      command: test \"$RP_MATCH_TOTAL\" = 6\n      on_error: fail\n"
	if err := os.WriteFile(filepath.Join(dir, ".rp", "hooks.yaml"), []byte(hooksYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := cliOptions{roles: "A", chartPath: filepath.Join(dir, "chart.svg")}
	a := headlessApp(t, opts)
	t.Chdir(dir)

	var buf bytes.Buffer
	if err := applyOnce(context.Background(), a, opts, &buf); err != nil {
		t.Fatalf("applyOnce: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "Hooks: 1 succeeded, 0 failed") {
		t.Errorf("output = %s", buf.String())
	}

	buf.Reset()
	opts.noHooks = true
	if err := applyOnce(context.Background(), a, opts, &buf); err != nil {
		t.Fatalf("applyOnce: %v", err)
	}
	if strings.Contains(buf.String(), "Hooks:") {
		t.Error("--no-hooks should skip hooks")
	}
}
