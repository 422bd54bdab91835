package pattern

import (
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// MatchResult is the per-version outcome of one evaluation. Level-1
// patterns fill Nodes; deeper patterns fill Edges.
type MatchResult struct {
	Version model.Version `json:"version"`
	Nodes   []model.Node  `json:"nodes,omitempty"`
	Edges   []model.Edge  `json:"edges,omitempty"`
	Count   int           `json:"count"`
}

// Len returns the number of matched elements, which can differ from Count
// at level 3.
func (r MatchResult) Len() int {
	return len(r.Nodes) + len(r.Edges)
}

// EvaluateOptions tunes evaluation.
type EvaluateOptions struct {
	// DedupCount makes level-3 counts the number of distinct second-hop
	// edges. By default every seed adds its own second-hop count, so an
	// edge reachable from two seeds is counted twice.
	DedupCount bool
}

// Evaluate counts pattern matches for each version in order. An invalid
// pattern yields zero-count results rather than an error so callers can
// still draw an empty chart.
func Evaluate(elems model.Elements, versions []model.Version, p Pattern) []MatchResult {
	return EvaluateWithOptions(elems, versions, p, EvaluateOptions{})
}

// EvaluateWithOptions is Evaluate with explicit options.
func EvaluateWithOptions(elems model.Elements, versions []model.Version, p Pattern, opts EvaluateOptions) []MatchResult {
	defer metrics.Timer(metrics.Evaluate)()

	results := make([]MatchResult, 0, len(versions))
	if p.Validate() != nil {
		for _, v := range versions {
			results = append(results, MatchResult{Version: v})
		}
		return results
	}

	idx := indexByVersion(elems)
	for _, v := range versions {
		vi := idx[v]
		var r MatchResult
		switch {
		case vi == nil:
			r = MatchResult{}
		case p.Level == 1:
			r = vi.matchNodes(p)
		case p.Level == 2:
			r = vi.matchEdges(p)
		default:
			r = vi.matchChains(p, opts)
		}
		r.Version = v
		results = append(results, r)
	}
	return results
}

// versionIndex holds one version's elements, with edges additionally
// bucketed by source so second hops are found without a full scan.
type versionIndex struct {
	nodes    []model.Node
	edges    []model.Edge
	bySource map[string][]int
}

func indexByVersion(elems model.Elements) map[model.Version]*versionIndex {
	idx := make(map[model.Version]*versionIndex)
	get := func(v model.Version) *versionIndex {
		vi, ok := idx[v]
		if !ok {
			vi = &versionIndex{bySource: make(map[string][]int)}
			idx[v] = vi
		}
		return vi
	}
	for _, n := range elems.Nodes {
		vi := get(n.Version)
		vi.nodes = append(vi.nodes, n)
	}
	for _, e := range elems.Edges {
		vi := get(e.Version)
		vi.bySource[e.Source] = append(vi.bySource[e.Source], len(vi.edges))
		vi.edges = append(vi.edges, e)
	}
	return idx
}

func (vi *versionIndex) matchNodes(p Pattern) MatchResult {
	first := p.At(1)
	var nodes []model.Node
	for _, n := range vi.nodes {
		if first.Has(n.Role) {
			nodes = append(nodes, n)
		}
	}
	return MatchResult{Nodes: nodes, Count: len(nodes)}
}

// seeds returns indices of edges whose endpoint roles satisfy the first
// two sets.
func (vi *versionIndex) seeds(p Pattern) []int {
	first, second := p.At(1), p.At(2)
	var out []int
	for i, e := range vi.edges {
		if first.Has(e.SourceRole) && second.Has(e.TargetRole) {
			out = append(out, i)
		}
	}
	return out
}

func (vi *versionIndex) matchEdges(p Pattern) MatchResult {
	seeds := vi.seeds(p)
	edges := make([]model.Edge, 0, len(seeds))
	for _, i := range seeds {
		edges = append(edges, vi.edges[i])
	}
	if len(edges) == 0 {
		edges = nil
	}
	return MatchResult{Edges: edges, Count: len(edges)}
}

// matchChains extends each seed by one hop. Seeds without a qualifying
// continuation are dropped. The element set is the union of all second
// hops (in discovery order) followed by the surviving seeds.
func (vi *versionIndex) matchChains(p Pattern, opts EvaluateOptions) MatchResult {
	third := p.At(3)
	seen := make(map[int]bool)
	var order []int
	var surviving []int
	count := 0

	for _, s := range vi.seeds(p) {
		var hops []int
		for _, j := range vi.bySource[vi.edges[s].Target] {
			if third.Has(vi.edges[j].TargetRole) {
				hops = append(hops, j)
			}
		}
		if len(hops) == 0 {
			continue
		}
		surviving = append(surviving, s)
		if !opts.DedupCount {
			count += len(hops)
		}
		for _, j := range hops {
			if !seen[j] {
				seen[j] = true
				order = append(order, j)
				if opts.DedupCount {
					count++
				}
			}
		}
	}
	for _, s := range surviving {
		if !seen[s] {
			seen[s] = true
			order = append(order, s)
		}
	}

	var edges []model.Edge
	for _, i := range order {
		edges = append(edges, vi.edges[i])
	}
	return MatchResult{Edges: edges, Count: count}
}

// Counts maps each version to its count, for metrics and exports.
func Counts(results []MatchResult) map[string]int {
	out := make(map[string]int, len(results))
	for _, r := range results {
		out[string(r.Version)] = r.Count
	}
	return out
}
