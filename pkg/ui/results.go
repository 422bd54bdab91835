package ui

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

// ResultsMarkdown formats per-version counts as a markdown table.
func ResultsMarkdown(p pattern.Pattern, results []pattern.MatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Matches for `%s`\n\n", p)
	if len(results) == 0 {
		sb.WriteString("_No versions._\n")
		return sb.String()
	}
	sb.WriteString("| Version | Count | Elements |\n|---|---:|---:|\n")
	total := 0
	for _, r := range results {
		fmt.Fprintf(&sb, "| %s | %d | %d |\n", r.Version, r.Count, r.Len())
		total += r.Count
	}
	fmt.Fprintf(&sb, "\n**Total:** %d across %d versions\n", total, len(results))
	return sb.String()
}

// ResultsCSV returns "version,count" rows with a header line.
func ResultsCSV(results []pattern.MatchResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"version", "count"}); err != nil {
		return "", err
	}
	for _, r := range results {
		if err := w.Write([]string{string(r.Version), strconv.Itoa(r.Count)}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// newMarkdownRenderer returns a glamour renderer, or nil when one cannot be
// built; callers then show raw markdown.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders md with r, falling back to the raw text.
func renderMarkdown(r *glamour.TermRenderer, md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
