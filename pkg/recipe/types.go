// Package recipe provides named pattern presets. Recipes come from a
// builtin set, then the user's recipes.yaml, then the project's
// .rp/recipes.yaml; later sources override earlier ones by name and a
// null entry disables a recipe.
package recipe

import (
	"fmt"

	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

// Recipe is a saved pattern.
type Recipe struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Roles uses the command-line form "A,B|C|D"; empty or "*" segments
	// select every role.
	Roles string `yaml:"roles,omitempty" json:"roles,omitempty"`
	// Level pads Roles with all-role levels up to this depth. Zero keeps
	// the depth of Roles.
	Level int `yaml:"level,omitempty" json:"level,omitempty"`
	// DedupCount, when set, overrides the configured level-3 counting.
	DedupCount *bool `yaml:"dedup_count,omitempty" json:"dedup_count,omitempty"`
}

// Summary is a listing row.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Roles       string `json:"roles"`
	Source      string `json:"source"` // builtin, user, project
}

// Pattern resolves the recipe against the role universe.
func (r Recipe) Pattern(universe []string) (pattern.Pattern, error) {
	p, err := pattern.ParsePattern(r.Roles, universe)
	if err != nil {
		return pattern.Pattern{}, err
	}
	if r.Level == 0 {
		return p, nil
	}
	if r.Level < pattern.MinLevel || r.Level > pattern.MaxLevel {
		return pattern.Pattern{}, fmt.Errorf("level %d outside %d..%d", r.Level, pattern.MinLevel, pattern.MaxLevel)
	}
	if r.Roles != "" && r.Level < p.Level {
		return pattern.Pattern{}, fmt.Errorf("roles %q have %d levels but level is %d", r.Roles, p.Level, r.Level)
	}
	sets := p.Options
	for len(sets) < r.Level {
		sets = append(sets, pattern.NewRoleSet(universe...))
	}
	return pattern.NewPattern(sets[:r.Level]...), nil
}

func boolPtr(b bool) *bool { return &b }

// builtins are always available unless disabled.
func builtins() map[string]*Recipe {
	return map[string]*Recipe{
		"default": {Description: "Every node, level 1", Roles: "*"},
		"pairs":   {Description: "Every edge, level 2", Roles: "*|*"},
		"chains":  {Description: "Every two-hop chain, level 3, counted per seed", Roles: "*|*|*"},
		"chains-distinct": {
			Description: "Every two-hop chain, level 3, distinct second hops",
			Roles:       "*|*|*",
			DedupCount:  boolPtr(true),
		},
	}
}
