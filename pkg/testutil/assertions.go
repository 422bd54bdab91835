package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/vanderheijden86/rolepattern/internal/datasource"
	"github.com/vanderheijden86/rolepattern/pkg/model"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

// AssertElementCount checks the number of nodes and edges.
func AssertElementCount(t *testing.T, elems model.Elements, nodes, edges int) {
	t.Helper()
	if len(elems.Nodes) != nodes || len(elems.Edges) != edges {
		t.Errorf("expected %d nodes and %d edges, got %d and %d", nodes, edges, len(elems.Nodes), len(elems.Edges))
	}
}

// AssertNoDuplicateIDs checks that no ID repeats within a version.
func AssertNoDuplicateIDs(t *testing.T, elems model.Elements) {
	t.Helper()
	seen := make(map[string]bool)
	check := func(v model.Version, id string) {
		key := string(v) + "/" + id
		if seen[key] {
			t.Errorf("duplicate ID %q in version %q", id, v)
		}
		seen[key] = true
	}
	for _, n := range elems.Nodes {
		check(n.Version, n.ID)
	}
	for _, e := range elems.Edges {
		check(e.Version, e.ID)
	}
}

// AssertAllValid fails on the first invalid element.
func AssertAllValid(t *testing.T, elems model.Elements) {
	t.Helper()
	if err := elems.Validate(); err != nil {
		t.Errorf("invalid elements: %v", err)
	}
}

// AssertCounts compares per-version counts; versions missing from want
// are expected to count zero.
func AssertCounts(t *testing.T, results []pattern.MatchResult, want map[string]int) {
	t.Helper()
	got := pattern.Counts(results)
	for _, r := range results {
		v := string(r.Version)
		if got[v] != want[v] {
			t.Errorf("version %s: count %d, want %d", v, got[v], want[v])
		}
	}
	for v := range want {
		if _, ok := got[v]; !ok {
			t.Errorf("version %s missing from results", v)
		}
	}
}

// AssertSameIDs compares ID sets ignoring order.
func AssertSameIDs(t *testing.T, got, want []string) {
	t.Helper()
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	if len(g) != len(w) {
		t.Errorf("IDs = %v, want %v", g, w)
		return
	}
	for i := range g {
		if g[i] != w[i] {
			t.Errorf("IDs = %v, want %v", g, w)
			return
		}
	}
}

// WriteDocumentFile writes elems as a graph document named name in dir and
// returns its path.
func WriteDocumentFile(t *testing.T, dir, name string, elems model.Elements) string {
	t.Helper()
	var buf bytes.Buffer
	if err := datasource.WriteDocument(&buf, datasource.Document{Versions: elems.Versions(), Elements: elems}); err != nil {
		t.Fatalf("encode document: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}
