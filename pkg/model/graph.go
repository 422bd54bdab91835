// Package model defines the versioned graph elements the pattern selector
// reads. Elements are owned by the data source; nothing in this module
// mutates them after loading.
package model

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Version identifies one snapshot of the graph. Documents may encode
// versions as JSON strings or numbers; both decode to the same text.
type Version string

// UnmarshalJSON accepts both `"3"` and `3`.
func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		*v = Version(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid version %s: %w", string(data), err)
	}
	*v = Version(n.String())
	return nil
}

// Node is a graph vertex tagged with a role. Parent names the compound
// node that contains it, if any.
type Node struct {
	ID      string  `json:"id"`
	Version Version `json:"version"`
	Role    string  `json:"role"`
	Parent  string  `json:"parent,omitempty"`
	Label   string  `json:"label,omitempty"`
}

// Validate checks the fields the evaluator depends on.
func (n Node) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if n.Parent == n.ID {
		return fmt.Errorf("node %s cannot be its own parent", n.ID)
	}
	return nil
}

// Edge is a directed link. SourceRole and TargetRole are denormalized
// copies of the endpoint roles so edges can be matched without a node
// lookup.
type Edge struct {
	ID         string  `json:"id"`
	Version    Version `json:"version"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	SourceRole string  `json:"sourceRole"`
	TargetRole string  `json:"targetRole"`
}

// Validate checks the fields the evaluator depends on.
func (e Edge) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("edge ID cannot be empty")
	}
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("edge %s must have both source and target", e.ID)
	}
	return nil
}

// Elements is the full element set across all versions.
type Elements struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Len returns the total number of elements.
func (e Elements) Len() int {
	return len(e.Nodes) + len(e.Edges)
}

// Roles returns the distinct roles seen on nodes and edge endpoints,
// sorted.
func (e Elements) Roles() []string {
	seen := make(map[string]struct{})
	add := func(r string) {
		if r != "" {
			seen[r] = struct{}{}
		}
	}
	for _, n := range e.Nodes {
		add(n.Role)
	}
	for _, ed := range e.Edges {
		add(ed.SourceRole)
		add(ed.TargetRole)
	}
	roles := make([]string, 0, len(seen))
	for r := range seen {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Versions returns the distinct versions seen on elements in first-seen
// order. Sources that carry an explicit version list should prefer it.
func (e Elements) Versions() []Version {
	seen := make(map[Version]bool)
	var out []Version
	add := func(v Version) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, n := range e.Nodes {
		add(n.Version)
	}
	for _, ed := range e.Edges {
		add(ed.Version)
	}
	return out
}

// Validate reports the first invalid element, if any.
func (e Elements) Validate() error {
	for i, n := range e.Nodes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
	}
	for i, ed := range e.Edges {
		if err := ed.Validate(); err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return nil
}

// ForVersion returns the elements tagged with v, in their original order.
func (e Elements) ForVersion(v Version) Elements {
	var out Elements
	for _, n := range e.Nodes {
		if n.Version == v {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, ed := range e.Edges {
		if ed.Version == v {
			out.Edges = append(out.Edges, ed)
		}
	}
	return out
}
