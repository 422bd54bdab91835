package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/rolepattern/pkg/config"
)

// Source names.
const (
	SourceBuiltin = "builtin"
	SourceUser    = "user"
	SourceProject = "project"
)

// fileFormat is the recipes.yaml layout.
type fileFormat struct {
	Recipes map[string]*Recipe `yaml:"recipes"`
}

// Loader merges recipes from every source.
type Loader struct {
	userPath   string
	projectDir string

	recipes  map[string]*Recipe
	sources  map[string]string
	warnings []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithUserPath sets the user recipes file. Empty disables it.
func WithUserPath(path string) LoaderOption {
	return func(l *Loader) { l.userPath = path }
}

// WithProjectDir sets the directory holding .rp/recipes.yaml. Empty
// disables it.
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) { l.projectDir = dir }
}

// NewLoader returns a loader reading the user config directory and the
// current directory unless overridden.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	if dir := config.ConfigDir(); dir != "" {
		l.userPath = filepath.Join(dir, "recipes.yaml")
	}
	l.projectDir, _ = os.Getwd()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges builtin, user and project recipes. Missing files are
// skipped; unreadable or invalid ones add a warning instead of failing.
func (l *Loader) Load() error {
	l.recipes = make(map[string]*Recipe)
	l.sources = make(map[string]string)
	l.warnings = nil

	l.merge(builtins(), SourceBuiltin)
	if l.userPath != "" {
		l.mergeFile(l.userPath, SourceUser)
	}
	if l.projectDir != "" {
		l.mergeFile(filepath.Join(l.projectDir, ".rp", "recipes.yaml"), SourceProject)
	}
	return nil
}

func (l *Loader) mergeFile(path, source string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.warnings = append(l.warnings, fmt.Sprintf("%s recipes: %v", source, err))
		}
		return
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("parsing %s: %v", path, err))
		return
	}
	l.merge(f.Recipes, source)
}

func (l *Loader) merge(recipes map[string]*Recipe, source string) {
	for name, r := range recipes {
		if r == nil {
			delete(l.recipes, name)
			delete(l.sources, name)
			continue
		}
		rc := *r
		rc.Name = name
		l.recipes[name] = &rc
		l.sources[name] = source
	}
}

// Get returns the named recipe, or nil.
func (l *Loader) Get(name string) *Recipe {
	return l.recipes[name]
}

// Source reports where the named recipe came from.
func (l *Loader) Source(name string) string {
	return l.sources[name]
}

// Names returns every recipe name, sorted.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.recipes))
	for name := range l.recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every recipe in name order.
func (l *Loader) List() []Recipe {
	out := make([]Recipe, 0, len(l.recipes))
	for _, name := range l.Names() {
		out = append(out, *l.recipes[name])
	}
	return out
}

// ListSummaries returns a listing row per recipe in name order.
func (l *Loader) ListSummaries() []Summary {
	out := make([]Summary, 0, len(l.recipes))
	for _, r := range l.List() {
		out = append(out, Summary{Name: r.Name, Description: r.Description, Roles: r.Roles, Source: l.sources[r.Name]})
	}
	return out
}

// Warnings returns problems found while loading.
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault creates a loader with default paths and loads it.
func LoadDefault() (*Loader, error) {
	l := NewLoader()
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}
