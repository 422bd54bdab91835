package render

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// layered ranks nodes by breadth-first depth from the roots (nodes with no
// incoming visible edge) and lays each rank out as a row. Nodes only
// reachable through cycles seed further walks in element order.
func layered(elems model.Elements, opts LayoutOptions) map[string]Point {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(elems.Nodes))
	for i, n := range elems.Nodes {
		g.AddNode(simple.Node(i))
		ids[n.ID] = int64(i)
	}
	for _, e := range elems.Edges {
		u, okU := ids[e.Source]
		v, okV := ids[e.Target]
		if !okU || !okV || u == v || g.HasEdgeFromTo(u, v) {
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(u), g.Node(v)))
	}

	depth := make(map[int64]int, len(elems.Nodes))
	var bfs traverse.BreadthFirst
	walk := func(root int64) {
		if bfs.Visited(g.Node(root)) {
			return
		}
		bfs.Walk(g, g.Node(root), func(n graph.Node, d int) bool {
			if _, ok := depth[n.ID()]; !ok {
				depth[n.ID()] = d
			}
			return false
		})
	}
	for i := range elems.Nodes {
		if g.To(int64(i)).Len() == 0 {
			walk(int64(i))
		}
	}
	for i := range elems.Nodes {
		walk(int64(i))
	}

	pos := make(map[string]Point, len(elems.Nodes))
	col := make(map[int]int)
	for i, n := range elems.Nodes {
		d := depth[int64(i)]
		pos[n.ID] = Point{
			X: opts.Padding + float64(col[d])*opts.Spacing,
			Y: opts.Padding + float64(d)*opts.Spacing,
		}
		col[d]++
	}
	return pos
}

// grid places nodes row by row in a square-ish grid.
func grid(nodes []model.Node, opts LayoutOptions) map[string]Point {
	pos := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return pos
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(nodes)))))
	for i, n := range nodes {
		pos[n.ID] = Point{
			X: opts.Padding + float64(i%cols)*opts.Spacing,
			Y: opts.Padding + float64(i/cols)*opts.Spacing,
		}
	}
	return pos
}
