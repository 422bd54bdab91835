// Package render is the graph display side of the pattern selector. It
// defines the Engine the highlight projector drives, ships Scene as a
// concrete in-memory engine, and implements the projector itself.
//
// Element IDs are handles: node and edge IDs share one namespace within an
// engine, as they do in most graph front ends.
package render

import (
	"errors"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// HideClass marks an element the current pattern filtered out.
const HideClass = "hide"

// ErrUnknownLayout is returned by RunLayout for an unsupported layout name.
var ErrUnknownLayout = errors.New("unknown layout")

// Layout names understood by Scene.
const (
	LayoutLayered = "layered"
	LayoutGrid    = "grid"
)

// LayoutOptions selects and tunes a layout run.
type LayoutOptions struct {
	Name    string  `yaml:"name" json:"name"`
	Padding float64 `yaml:"padding" json:"padding"`
	Spacing float64 `yaml:"spacing" json:"spacing"`
}

// DefaultLayoutOptions returns the layered layout with standard spacing.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{Name: LayoutLayered, Padding: 36, Spacing: 60}
}

// Engine is the graph rendering collaborator. Collection methods return
// IDs in the engine's element order.
type Engine interface {
	Nodes() []model.Node
	Edges() []model.Edge
	// ConnectedEdges returns every edge incident to one of the nodes.
	ConnectedEdges(nodeIDs []string) []string
	// ConnectedNodes returns the endpoints of the edges.
	ConnectedNodes(edgeIDs []string) []string
	// Ancestors returns the compound parents of the nodes, transitively.
	Ancestors(nodeIDs []string) []string
	AddClass(ids []string, class string)
	RemoveClass(ids []string, class string)
	// StartBatch and EndBatch coalesce the mutations between them into a
	// single visible update. Batches nest.
	StartBatch()
	EndBatch()
	RunLayout(opts LayoutOptions) error
}

// AllIDs lists every node then every edge ID held by e.
func AllIDs(e Engine) []string {
	nodes, edges := e.Nodes(), e.Edges()
	ids := make([]string, 0, len(nodes)+len(edges))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	for _, ed := range edges {
		ids = append(ids, ed.ID)
	}
	return ids
}
