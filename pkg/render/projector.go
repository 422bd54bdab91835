package render

import (
	"fmt"
	"sync"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

// ProjectionState is the projector's filter state. Filtered is false in
// the unfiltered state, where Pattern is the zero value.
type ProjectionState struct {
	Filtered bool
	Pattern  pattern.Pattern
}

// Projection lists what an Apply left visible.
type Projection struct {
	Nodes     []string
	Edges     []string
	Ancestors []string
	Hidden    int
}

// Projector hides every element outside a pattern's matches and re-runs
// the layout. It holds no element state of its own beyond the current
// filter, so a fresh Apply always starts from a clean scene.
type Projector struct {
	engine Engine
	layout LayoutOptions

	mu    sync.Mutex
	state ProjectionState
}

// NewProjector returns a projector driving engine with the given layout.
func NewProjector(engine Engine, layout LayoutOptions) *Projector {
	return &Projector{engine: engine, layout: layout}
}

// State returns the current filter state.
func (p *Projector) State() ProjectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Apply filters the engine to pat's matches. Matching uses the same rules
// as pattern.Evaluate but over whatever the engine currently shows, with
// no version filter. Compound parents of matched nodes stay visible.
func (p *Projector) Apply(pat pattern.Pattern) (Projection, error) {
	if err := pat.Validate(); err != nil {
		return Projection{}, fmt.Errorf("apply pattern: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := metrics.Timer(metrics.Project)
	e := p.engine
	all := AllIDs(e)

	e.StartBatch()
	e.RemoveClass(all, HideClass)

	var proj Projection
	switch pat.Level {
	case 1:
		proj.Nodes = matchNodes(e.Nodes(), pat)
		proj.Edges = e.ConnectedEdges(proj.Nodes)
	case 2:
		proj.Edges = matchEdges(e.Edges(), pat)
		proj.Nodes = e.ConnectedNodes(proj.Edges)
	default:
		proj.Edges = matchChains(e.Edges(), pat)
		proj.Nodes = e.ConnectedNodes(proj.Edges)
	}
	proj.Ancestors = e.Ancestors(proj.Nodes)

	keep := make(map[string]bool, len(proj.Nodes)+len(proj.Edges)+len(proj.Ancestors))
	for _, group := range [][]string{proj.Nodes, proj.Edges, proj.Ancestors} {
		for _, id := range group {
			keep[id] = true
		}
	}
	var hide []string
	for _, id := range all {
		if !keep[id] {
			hide = append(hide, id)
		}
	}
	e.AddClass(hide, HideClass)
	e.EndBatch()
	proj.Hidden = len(hide)
	stop()

	p.state = ProjectionState{Filtered: true, Pattern: pat}
	debug.Log("projected %s: %d nodes, %d edges visible, %d hidden", pat, len(proj.Nodes), len(proj.Edges), proj.Hidden)

	if err := e.RunLayout(p.layout); err != nil {
		return proj, fmt.Errorf("layout: %w", err)
	}
	return proj, nil
}

// Remove clears every hide marker and re-runs the layout. Calling it in
// the unfiltered state is harmless.
func (p *Projector) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.engine
	e.StartBatch()
	e.RemoveClass(AllIDs(e), HideClass)
	e.EndBatch()
	p.state = ProjectionState{}

	if err := e.RunLayout(p.layout); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
}

func matchNodes(nodes []model.Node, pat pattern.Pattern) []string {
	first := pat.At(1)
	var out []string
	for _, n := range nodes {
		if first.Has(n.Role) {
			out = append(out, n.ID)
		}
	}
	return out
}

func isSeed(e model.Edge, pat pattern.Pattern) bool {
	return pat.At(1).Has(e.SourceRole) && pat.At(2).Has(e.TargetRole)
}

func matchEdges(edges []model.Edge, pat pattern.Pattern) []string {
	var out []string
	for _, e := range edges {
		if isSeed(e, pat) {
			out = append(out, e.ID)
		}
	}
	return out
}

// matchChains keeps seeds that continue into a third-level edge, together
// with those continuations: second hops first, then the seeds.
func matchChains(edges []model.Edge, pat pattern.Pattern) []string {
	third := pat.At(3)
	bySource := make(map[string][]int)
	for i, e := range edges {
		bySource[e.Source] = append(bySource[e.Source], i)
	}

	seen := make(map[int]bool)
	var out []string
	var surviving []int
	for i, e := range edges {
		if !isSeed(e, pat) {
			continue
		}
		found := false
		for _, j := range bySource[e.Target] {
			if !third.Has(edges[j].TargetRole) {
				continue
			}
			found = true
			if !seen[j] {
				seen[j] = true
				out = append(out, edges[j].ID)
			}
		}
		if found {
			surviving = append(surviving, i)
		}
	}
	for _, i := range surviving {
		if !seen[i] {
			seen[i] = true
			out = append(out, edges[i].ID)
		}
	}
	return out
}
