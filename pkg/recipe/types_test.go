package recipe_test

import (
	"testing"

	"github.com/vanderheijden86/rolepattern/pkg/recipe"
)

func TestRecipePattern(t *testing.T) {
	universe := []string{"A", "B", "C"}
	tests := []struct {
		name    string
		r       recipe.Recipe
		want    string
		wantErr bool
	}{
		{"all roles", recipe.Recipe{Roles: "*"}, "A,B,C", false},
		{"empty roles", recipe.Recipe{}, "A,B,C", false},
		{"explicit", recipe.Recipe{Roles: "A,B|C"}, "A,B -> C", false},
		{"padded", recipe.Recipe{Roles: "A", Level: 3}, "A -> A,B,C -> A,B,C", false},
		{"level only", recipe.Recipe{Level: 2}, "A,B,C -> A,B,C", false},
		{"level below roles", recipe.Recipe{Roles: "A|B", Level: 1}, "", true},
		{"level out of range", recipe.Recipe{Level: 4}, "", true},
		{"too many levels", recipe.Recipe{Roles: "A|B|C|A"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.r.Pattern(universe)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.String() != tt.want {
				t.Errorf("pattern = %q, want %q", p.String(), tt.want)
			}
		})
	}
}

func TestBuiltinDistinctChainsDedup(t *testing.T) {
	loader := builtinOnly(t)
	r := loader.Get("chains-distinct")
	if r == nil || r.DedupCount == nil || !*r.DedupCount {
		t.Fatalf("chains-distinct should force dedup: %+v", r)
	}
	if c := loader.Get("chains"); c.DedupCount != nil {
		t.Error("chains should follow the configured counting")
	}
}
