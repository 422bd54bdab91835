// Package testutil provides element fixture generators for pattern tests.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// GraphFixture is an abstract graph: node names plus directed edges as
// [from_idx, to_idx] pairs.
type GraphFixture struct {
	Description string
	Nodes       []string
	Edges       [][2]int
}

// GeneratorConfig controls element generation.
type GeneratorConfig struct {
	Seed     int64           // Random seed for determinism
	Roles    []string        // Roles assigned round-robin by node index
	Versions []model.Version // Every fixture is replicated per version
	// DropRate is the chance that an element is missing from a version
	// after the first. Zero keeps every version identical.
	DropRate float64
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		Roles:    []string{"A", "B", "C"},
		Versions: []model.Version{"1", "2", "3"},
	}
}

// Generator creates element fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultConfig().Roles
	}
	if len(cfg.Versions) == 0 {
		cfg.Versions = []model.Version{"1"}
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ============================================================================
// Topologies
// ============================================================================

// Chain creates n0 -> n1 -> ... -> n{size-1}.
func Chain(size int) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("chain of %d", size)}
	for i := 0; i < size; i++ {
		gf.Nodes = append(gf.Nodes, fmt.Sprintf("n%d", i))
		if i > 0 {
			gf.Edges = append(gf.Edges, [2]int{i - 1, i})
		}
	}
	return gf
}

// Star creates a hub with edges out to every spoke.
func Star(spokes int) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("star with %d spokes", spokes), Nodes: []string{"hub"}}
	for i := 1; i <= spokes; i++ {
		gf.Nodes = append(gf.Nodes, fmt.Sprintf("spoke%d", i))
		gf.Edges = append(gf.Edges, [2]int{0, i})
	}
	return gf
}

// Cycle creates n0 -> n1 -> ... -> n{size-1} -> n0.
func Cycle(size int) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("cycle of %d", size)}
	for i := 0; i < size; i++ {
		gf.Nodes = append(gf.Nodes, fmt.Sprintf("n%d", i))
		gf.Edges = append(gf.Edges, [2]int{i, (i + 1) % size})
	}
	return gf
}

// RandomDAG creates a DAG where each forward pair is linked with the
// given probability.
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("random DAG of %d (density %.2f)", size, density)}
	for i := 0; i < size; i++ {
		gf.Nodes = append(gf.Nodes, fmt.Sprintf("n%d", i))
	}
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if g.rng.Float64() < density {
				gf.Edges = append(gf.Edges, [2]int{i, j})
			}
		}
	}
	return gf
}

// ============================================================================
// Elements
// ============================================================================

// RoleOf returns the role assigned to the node at index i.
func (g *Generator) RoleOf(i int) string {
	return g.cfg.Roles[i%len(g.cfg.Roles)]
}

// ToElements materializes gf once per configured version. Edge IDs are
// "<from>-<to>" and carry the endpoint roles.
func (g *Generator) ToElements(gf GraphFixture) model.Elements {
	var out model.Elements
	for vi, v := range g.cfg.Versions {
		keep := make([]bool, len(gf.Nodes))
		for i, name := range gf.Nodes {
			keep[i] = vi == 0 || g.rng.Float64() >= g.cfg.DropRate
			if !keep[i] {
				continue
			}
			out.Nodes = append(out.Nodes, model.Node{ID: name, Version: v, Role: g.RoleOf(i)})
		}
		for _, e := range gf.Edges {
			if !keep[e[0]] || !keep[e[1]] {
				continue
			}
			if vi > 0 && g.rng.Float64() < g.cfg.DropRate {
				continue
			}
			from, to := gf.Nodes[e[0]], gf.Nodes[e[1]]
			out.Edges = append(out.Edges, model.Edge{
				ID:         from + "-" + to,
				Version:    v,
				Source:     from,
				Target:     to,
				SourceRole: g.RoleOf(e[0]),
				TargetRole: g.RoleOf(e[1]),
			})
		}
	}
	return out
}

// QuickChain returns a chain replicated over the default versions.
func QuickChain(size int) model.Elements {
	return NewDefault().ToElements(Chain(size))
}

// QuickStar returns a star replicated over the default versions.
func QuickStar(spokes int) model.Elements {
	return NewDefault().ToElements(Star(spokes))
}
