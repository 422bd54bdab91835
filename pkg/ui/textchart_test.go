package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/vanderheijden86/rolepattern/pkg/chart"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

func TestTextChartLabelsUndefinedAsZero(t *testing.T) {
	tc := NewTextChart(TestTheme())
	w, err := tc.Factory()()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	d := chart.Data{
		Labels: []string{"v1", "v2", "v3"},
		Series: [][]chart.Value{{chart.V(4), {}, chart.V(2)}},
	}
	if err := w.Render(d, chart.DefaultOptions()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	lines := strings.Split(tc.View(40), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasSuffix(lines[1], " 0") {
		t.Errorf("undefined point should be labelled 0: %q", lines[1])
	}
	if !strings.HasSuffix(lines[0], " 4") || !strings.Contains(lines[0], "█") {
		t.Errorf("defined point line = %q", lines[0])
	}
	if strings.Count(lines[0], "█") <= strings.Count(lines[2], "█") {
		t.Error("larger value should draw a longer bar")
	}
}

func TestTextChartDestroy(t *testing.T) {
	tc := NewTextChart(TestTheme())
	w, _ := tc.Factory()()
	_ = w.Render(chart.Data{Labels: []string{"a"}, Series: [][]chart.Value{{chart.V(1)}}}, chart.DefaultOptions())
	if !tc.Live() {
		t.Fatal("chart should be live after render")
	}
	w.Destroy()
	if tc.Live() {
		t.Error("destroy should clear the chart")
	}
	if !strings.Contains(tc.View(40), "no chart") {
		t.Errorf("view after destroy = %q", tc.View(40))
	}
	if err := w.Render(chart.Data{}, chart.DefaultOptions()); !errors.Is(err, chart.ErrDestroyed) {
		t.Errorf("render after destroy: %v", err)
	}
}

func TestTextChartReplacedByRenderer(t *testing.T) {
	tc := NewTextChart(TestTheme())
	r := chart.NewRenderer(tc.Factory(), chart.DefaultOptions())
	if err := r.Draw([]pattern.MatchResult{{Version: "1", Count: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(nil); err != nil {
		t.Fatal(err)
	}
	if !tc.Live() {
		t.Fatal("second draw should leave a live chart")
	}
	if !strings.Contains(tc.View(40), "no versions") {
		t.Errorf("empty draw view = %q", tc.View(40))
	}
}

func TestResultsMarkdown(t *testing.T) {
	p := pattern.NewPattern(pattern.NewRoleSet("A"), pattern.NewRoleSet("B"))
	md := ResultsMarkdown(p, []pattern.MatchResult{
		{Version: "1", Count: 2},
		{Version: "2", Count: 0},
	})
	for _, want := range []string{"`A -> B`", "| 1 | 2 |", "| 2 | 0 |", "**Total:** 2 across 2 versions"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	empty := ResultsMarkdown(p, nil)
	if !strings.Contains(empty, "No versions") {
		t.Errorf("empty markdown = %q", empty)
	}
}

func TestRenderMarkdownFallback(t *testing.T) {
	if got := renderMarkdown(nil, "# raw"); got != "# raw" {
		t.Errorf("nil renderer should return raw text, got %q", got)
	}
	r := newMarkdownRenderer(60)
	if r == nil {
		t.Skip("glamour renderer unavailable")
	}
	if got := renderMarkdown(r, "hello **world**"); !strings.Contains(got, "world") {
		t.Errorf("rendered = %q", got)
	}
}

func TestResultsCSVQuotes(t *testing.T) {
	got, err := ResultsCSV([]pattern.MatchResult{{Version: "a,b", Count: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "version,count\n\"a,b\",1\n" {
		t.Errorf("csv = %q", got)
	}
}

func TestTruncateRunesHelper(t *testing.T) {
	tests := []struct {
		in     string
		max    int
		suffix string
		want   string
	}{
		{"hello", 10, "…", "hello"},
		{"hello world", 8, "…", "hello w…"},
		{"日本語テキスト", 6, "…", "日本…"},
		{"abc", 0, "…", ""},
		{"abcdef", 1, "...", "."},
	}
	for _, tt := range tests {
		if got := truncateRunesHelper(tt.in, tt.max, tt.suffix); got != tt.want {
			t.Errorf("truncateRunesHelper(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPadRightWide(t *testing.T) {
	if got := padRight("日本", 6); got != "日本  " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("long", 2); got != "long" {
		t.Errorf("padRight should not cut, got %q", got)
	}
}
