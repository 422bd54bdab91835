package render

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/multi"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
)

type lineKey [3]int64

// Point is a laid-out node position.
type Point struct {
	X, Y float64
}

// Scene is an in-memory Engine. Connectivity lives in a gonum directed
// multigraph so parallel edges and self loops are kept; classes and
// positions are tracked per element ID.
type Scene struct {
	mu sync.Mutex

	g       *multi.DirectedGraph
	nodes   []model.Node
	edges   []model.Edge
	nodeIdx map[string]int // node ID -> index into nodes
	edgeIdx map[string]int // edge ID -> index into edges
	gid     map[string]int64
	// gonum line IDs are only unique per node pair, so lines are keyed by
	// (from, to, line ID).
	lineEdge map[lineKey]int

	classes   map[string]map[string]struct{}
	positions map[string]Point

	batch    int
	dirty    bool
	revision uint64
	layouts  int
	onChange func(revision uint64)
}

// NewScene builds a scene from elems. IDs must be unique across nodes and
// edges; later duplicates are dropped. Edges whose endpoints are not in the
// scene are kept for display but take no part in connectivity.
func NewScene(elems model.Elements) *Scene {
	s := &Scene{
		g:         multi.NewDirectedGraph(),
		nodeIdx:   make(map[string]int, len(elems.Nodes)),
		edgeIdx:   make(map[string]int, len(elems.Edges)),
		gid:       make(map[string]int64, len(elems.Nodes)),
		lineEdge:  make(map[lineKey]int, len(elems.Edges)),
		classes:   make(map[string]map[string]struct{}),
		positions: make(map[string]Point),
	}

	for _, n := range elems.Nodes {
		if s.has(n.ID) {
			debug.Log("scene: dropping duplicate element %s", n.ID)
			continue
		}
		gn := s.g.NewNode()
		s.g.AddNode(gn)
		s.gid[n.ID] = gn.ID()
		s.nodeIdx[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}

	for _, e := range elems.Edges {
		if s.has(e.ID) {
			debug.Log("scene: dropping duplicate element %s", e.ID)
			continue
		}
		s.edgeIdx[e.ID] = len(s.edges)
		u, okU := s.gid[e.Source]
		v, okV := s.gid[e.Target]
		if okU && okV {
			l := s.g.NewLine(s.g.Node(u), s.g.Node(v))
			s.g.SetLine(l)
			s.lineEdge[lineKey{u, v, l.ID()}] = len(s.edges)
		}
		s.edges = append(s.edges, e)
	}
	return s
}

func (s *Scene) has(id string) bool {
	_, n := s.nodeIdx[id]
	_, e := s.edgeIdx[id]
	return n || e
}

// OnChange registers fn to be called after every coalesced mutation.
func (s *Scene) OnChange(fn func(revision uint64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Revision counts visible updates. A batch counts once.
func (s *Scene) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// LayoutRuns counts completed layout runs.
func (s *Scene) LayoutRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layouts
}

func (s *Scene) Nodes() []model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Node(nil), s.nodes...)
}

func (s *Scene) Edges() []model.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Edge(nil), s.edges...)
}

func (s *Scene) ConnectedEdges(nodeIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hit := make(map[int]bool)
	collect := func(uid, vid int64) {
		lines := s.g.Lines(uid, vid)
		for lines.Next() {
			if i, ok := s.lineEdge[lineKey{uid, vid, lines.Line().ID()}]; ok {
				hit[i] = true
			}
		}
	}
	for _, id := range nodeIDs {
		u, ok := s.gid[id]
		if !ok {
			continue
		}
		out := s.g.From(u)
		for out.Next() {
			collect(u, out.Node().ID())
		}
		in := s.g.To(u)
		for in.Next() {
			collect(in.Node().ID(), u)
		}
	}
	return s.edgeIDs(hit)
}

func (s *Scene) ConnectedNodes(edgeIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hit := make(map[int]bool)
	for _, id := range edgeIDs {
		i, ok := s.edgeIdx[id]
		if !ok {
			continue
		}
		e := s.edges[i]
		if j, ok := s.nodeIdx[e.Source]; ok {
			hit[j] = true
		}
		if j, ok := s.nodeIdx[e.Target]; ok {
			hit[j] = true
		}
	}
	return s.nodeIDs(hit)
}

func (s *Scene) Ancestors(nodeIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hit := make(map[int]bool)
	for _, id := range nodeIDs {
		i, ok := s.nodeIdx[id]
		if !ok {
			continue
		}
		// Parent chains are walked until an unknown or already seen node,
		// which also stops on malformed cycles.
		for p := s.nodes[i].Parent; p != ""; {
			j, ok := s.nodeIdx[p]
			if !ok || hit[j] {
				break
			}
			hit[j] = true
			p = s.nodes[j].Parent
		}
	}
	return s.nodeIDs(hit)
}

func (s *Scene) nodeIDs(hit map[int]bool) []string {
	idx := make([]int, 0, len(hit))
	for i := range hit {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = s.nodes[i].ID
	}
	return out
}

func (s *Scene) edgeIDs(hit map[int]bool) []string {
	idx := make([]int, 0, len(hit))
	for i := range hit {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = s.edges[i].ID
	}
	return out
}

func (s *Scene) AddClass(ids []string, class string) {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if !s.has(id) {
			continue
		}
		set := s.classes[id]
		if set == nil {
			set = make(map[string]struct{})
			s.classes[id] = set
		}
		if _, ok := set[class]; !ok {
			set[class] = struct{}{}
			changed = true
		}
	}
	s.mutated(changed)
}

func (s *Scene) RemoveClass(ids []string, class string) {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if set, ok := s.classes[id]; ok {
			if _, ok := set[class]; ok {
				delete(set, class)
				changed = true
			}
		}
	}
	s.mutated(changed)
}

// mutated releases s.mu, notifying the change callback when a change is
// visible now rather than deferred to the end of a batch.
func (s *Scene) mutated(changed bool) {
	var fn func(uint64)
	var rev uint64
	if changed {
		if s.batch > 0 {
			s.dirty = true
		} else {
			s.revision++
			fn, rev = s.onChange, s.revision
		}
	}
	s.mu.Unlock()
	if fn != nil {
		fn(rev)
	}
}

func (s *Scene) StartBatch() {
	s.mu.Lock()
	s.batch++
	s.mu.Unlock()
}

func (s *Scene) EndBatch() {
	s.mu.Lock()
	if s.batch == 0 {
		s.mu.Unlock()
		return
	}
	s.batch--
	if s.batch > 0 || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	s.revision++
	fn, rev := s.onChange, s.revision
	s.mu.Unlock()
	if fn != nil {
		fn(rev)
	}
}

// HasClass reports whether id carries class.
func (s *Scene) HasClass(id, class string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.classes[id][class]
	return ok
}

// Visible reports whether id exists and is not hidden.
func (s *Scene) Visible(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(id) {
		return false
	}
	_, hidden := s.classes[id][HideClass]
	return !hidden
}

// VisibleElements returns the elements not carrying HideClass.
func (s *Scene) VisibleElements() model.Elements {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *Scene) visibleLocked() model.Elements {
	var out model.Elements
	for _, n := range s.nodes {
		if _, hidden := s.classes[n.ID][HideClass]; !hidden {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range s.edges {
		if _, hidden := s.classes[e.ID][HideClass]; !hidden {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Position returns the last laid-out position of a visible node.
func (s *Scene) Position(id string) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	return p, ok
}

// Bounds returns the extent of the current layout including padding.
func (s *Scene) Bounds(padding float64) (width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.X > width {
			width = p.X
		}
		if p.Y > height {
			height = p.Y
		}
	}
	return width + padding, height + padding
}

// RunLayout positions every visible node. Hidden nodes lose their
// position.
func (s *Scene) RunLayout(opts LayoutOptions) error {
	defer metrics.Timer(metrics.Layout)()

	if opts.Name == "" {
		opts.Name = LayoutLayered
	}
	if opts.Spacing <= 0 {
		opts.Spacing = DefaultLayoutOptions().Spacing
	}

	s.mu.Lock()
	visible := s.visibleLocked()
	var pos map[string]Point
	switch opts.Name {
	case LayoutLayered:
		pos = layered(visible, opts)
	case LayoutGrid:
		pos = grid(visible.Nodes, opts)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownLayout, opts.Name)
	}
	s.positions = pos
	s.layouts++
	s.revision++
	fn, rev := s.onChange, s.revision
	s.mu.Unlock()

	debug.Log("layout %s placed %d nodes", opts.Name, len(pos))
	if fn != nil {
		fn(rev)
	}
	return nil
}
