package pattern

import (
	"testing"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

func edge(id string, v model.Version, src, dst, srcRole, dstRole string) model.Edge {
	return model.Edge{ID: id, Version: v, Source: src, Target: dst, SourceRole: srcRole, TargetRole: dstRole}
}

func edgeIDs(edges []model.Edge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluateLevelOne(t *testing.T) {
	elems := model.Elements{Nodes: []model.Node{
		{ID: "n1", Version: "1", Role: "A"},
		{ID: "n2", Version: "1", Role: "B"},
	}}
	results := Evaluate(elems, []model.Version{"1"}, NewPattern(NewRoleSet("A")))

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Version != "1" || results[0].Count != 1 {
		t.Errorf("result = %+v, want version 1 count 1", results[0])
	}
	if len(results[0].Nodes) != 1 || results[0].Nodes[0].ID != "n1" {
		t.Errorf("matched nodes = %+v", results[0].Nodes)
	}
}

func TestEvaluateLevelTwo(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{edge("e1", "1", "x", "y", "A", "B")}}
	versions := []model.Version{"1"}

	match := Evaluate(elems, versions, NewPattern(NewRoleSet("A"), NewRoleSet("B")))
	if match[0].Count != 1 {
		t.Errorf("A->B count = %d, want 1", match[0].Count)
	}

	miss := Evaluate(elems, versions, NewPattern(NewRoleSet("A"), NewRoleSet("C")))
	if miss[0].Count != 0 || miss[0].Len() != 0 {
		t.Errorf("A->C result = %+v, want empty", miss[0])
	}
}

func TestEvaluateFiltersByVersion(t *testing.T) {
	elems := model.Elements{
		Nodes: []model.Node{
			{ID: "a1", Version: "1", Role: "A"},
			{ID: "a2", Version: "2", Role: "A"},
			{ID: "a2b", Version: "2", Role: "A"},
		},
	}
	results := Evaluate(elems, []model.Version{"2", "1", "3"}, NewPattern(NewRoleSet("A")))

	want := []struct {
		v model.Version
		n int
	}{{"2", 2}, {"1", 1}, {"3", 0}}
	if len(results) != len(want) {
		t.Fatalf("got %d results", len(results))
	}
	for i, w := range want {
		if results[i].Version != w.v || results[i].Count != w.n {
			t.Errorf("results[%d] = {%s %d}, want {%s %d}", i, results[i].Version, results[i].Count, w.v, w.n)
		}
	}
}

func TestEvaluateLevelThreeDropsSeedWithoutContinuation(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{
		edge("seed-ok", "1", "a", "b", "A", "B"),
		edge("seed-dead", "1", "a2", "b2", "A", "B"),
		edge("hop", "1", "b", "c", "B", "C"),
		edge("hop-wrong-role", "1", "b2", "d", "B", "D"),
	}}
	p := NewPattern(NewRoleSet("A"), NewRoleSet("B"), NewRoleSet("C"))
	r := Evaluate(elems, []model.Version{"1"}, p)[0]

	if r.Count != 1 {
		t.Errorf("count = %d, want 1", r.Count)
	}
	got := edgeIDs(r.Edges)
	if want := []string{"hop", "seed-ok"}; !equalStrings(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestEvaluateLevelThreeNoSeeds(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{edge("e", "1", "a", "b", "X", "Y")}}
	p := NewPattern(NewRoleSet("A"), NewRoleSet("B"), NewRoleSet("C"))
	r := Evaluate(elems, []model.Version{"1"}, p)[0]
	if r.Count != 0 || r.Edges != nil {
		t.Errorf("result = %+v, want empty", r)
	}
}

func TestEvaluateLevelThreeSecondHopMustShareVersion(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{
		edge("seed", "1", "a", "b", "A", "B"),
		edge("hop-v2", "2", "b", "c", "B", "C"),
	}}
	p := NewPattern(NewRoleSet("A"), NewRoleSet("B"), NewRoleSet("C"))
	results := Evaluate(elems, []model.Version{"1", "2"}, p)
	for _, r := range results {
		if r.Count != 0 {
			t.Errorf("version %s count = %d, want 0", r.Version, r.Count)
		}
	}
}

// Two seeds share a target, so the same second-hop edge is reached twice.
// The default count accumulates per seed; the union holds it once.
func TestEvaluateLevelThreeSharedSecondHop(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{
		edge("s1", "1", "a1", "hub", "A", "B"),
		edge("s2", "1", "a2", "hub", "A", "B"),
		edge("h1", "1", "hub", "c1", "B", "C"),
		edge("h2", "1", "hub", "c2", "B", "C"),
	}}
	p := NewPattern(NewRoleSet("A"), NewRoleSet("B"), NewRoleSet("C"))
	versions := []model.Version{"1"}

	r := Evaluate(elems, versions, p)[0]
	if r.Count != 4 {
		t.Errorf("per-seed count = %d, want 4", r.Count)
	}
	if got, want := edgeIDs(r.Edges), []string{"h1", "h2", "s1", "s2"}; !equalStrings(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}

	d := EvaluateWithOptions(elems, versions, p, EvaluateOptions{DedupCount: true})[0]
	if d.Count != 2 {
		t.Errorf("dedup count = %d, want 2", d.Count)
	}
	if d.Len() != r.Len() {
		t.Errorf("dedup must not change the element set: %d vs %d", d.Len(), r.Len())
	}
}

// A seed that is itself a second hop of another seed appears once.
func TestEvaluateLevelThreeChainOverlap(t *testing.T) {
	elems := model.Elements{Edges: []model.Edge{
		edge("ab", "1", "a", "b", "A", "A"),
		edge("bc", "1", "b", "c", "A", "A"),
		edge("cd", "1", "c", "d", "A", "A"),
	}}
	all := NewRoleSet("A")
	r := Evaluate(elems, []model.Version{"1"}, NewPattern(all, all, all))[0]

	if r.Count != 2 {
		t.Errorf("count = %d, want 2", r.Count)
	}
	if got, want := edgeIDs(r.Edges), []string{"bc", "cd", "ab"}; !equalStrings(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestEvaluateInvalidPatternYieldsZeroes(t *testing.T) {
	elems := model.Elements{Nodes: []model.Node{{ID: "n", Version: "1", Role: "A"}}}
	for _, p := range []Pattern{{}, {Level: 4}, {Level: 2, Options: []RoleSet{NewRoleSet("A")}}} {
		results := Evaluate(elems, []model.Version{"1", "2"}, p)
		if len(results) != 2 {
			t.Fatalf("pattern %+v: got %d results", p, len(results))
		}
		for _, r := range results {
			if r.Count != 0 || r.Len() != 0 {
				t.Errorf("pattern %+v: result %+v should be empty", p, r)
			}
		}
	}
}

func TestEvaluateEmptyInputs(t *testing.T) {
	if got := Evaluate(model.Elements{}, nil, NewPattern(NewRoleSet("A"))); len(got) != 0 {
		t.Errorf("no versions should yield no results, got %d", len(got))
	}
	got := Evaluate(model.Elements{}, []model.Version{"1"}, NewPattern(NewRoleSet("A")))
	if len(got) != 1 || got[0].Count != 0 {
		t.Errorf("empty elements result = %+v", got)
	}
}

func TestEvaluateEmptyRoleSetMatchesNothing(t *testing.T) {
	elems := model.Elements{Nodes: []model.Node{{ID: "n", Version: "1", Role: "A"}}}
	r := Evaluate(elems, []model.Version{"1"}, NewPattern(NewRoleSet()))[0]
	if r.Count != 0 {
		t.Errorf("count = %d, want 0", r.Count)
	}
}

func TestCounts(t *testing.T) {
	got := Counts([]MatchResult{{Version: "1", Count: 3}, {Version: "2"}})
	if got["1"] != 3 || got["2"] != 0 || len(got) != 2 {
		t.Errorf("Counts() = %v", got)
	}
}
