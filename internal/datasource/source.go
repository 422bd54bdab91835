// Package datasource provides the graph data collaborators of the pattern
// selector: something that can hand back the full versioned element set
// and the ordered list of known versions. It discovers candidate files,
// picks the freshest valid one, and reads JSON documents or SQLite stores.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// Common errors.
var (
	ErrNoSource    = errors.New("no graph data source found")
	ErrUnknownType = errors.New("unknown source type")
)

// Source is the data collaborator. Both calls may block on I/O and honour
// ctx cancellation.
type Source interface {
	Elements(ctx context.Context) (model.Elements, error)
	Versions(ctx context.Context) ([]model.Version, error)
	Close() error
}

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeJSON is a JSON graph document
	SourceTypeJSON SourceType = "json"
	// SourceTypeSQLite is a SQLite element store
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 50
)

// DefaultNames are the file names discovery looks for, in no particular
// order; freshness decides.
var DefaultNames = []string{"graph.json", "elements.json", "graph.db", "graph.sqlite"}

// DataSource describes a candidate file.
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Size            int64      `json:"size"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), status)
}

// DetectType infers the source type from a file extension.
func DetectType(path string) (SourceType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite, nil
	default:
		return "", fmt.Errorf("%w: cannot infer type of %q", ErrUnknownType, path)
	}
}

func priorityOf(t SourceType) int {
	if t == SourceTypeSQLite {
		return PrioritySQLite
	}
	return PriorityJSON
}

// Discover lists candidate sources in dir, freshest first. Files with
// equal modification times are ordered by priority.
func Discover(dir string) ([]DataSource, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	var sources []DataSource
	for _, name := range DefaultNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		typ, err := DetectType(path)
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Type:     typ,
			Path:     path,
			Priority: priorityOf(typ),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

// Validate opens the source and checks that its elements are well formed.
// The result is recorded on s.
func Validate(ctx context.Context, s *DataSource) error {
	src, err := OpenSource(*s)
	if err == nil {
		var elems model.Elements
		elems, err = src.Elements(ctx)
		if err == nil {
			err = elems.Validate()
		}
		src.Close()
	}
	s.Valid = err == nil
	if err != nil {
		s.ValidationError = err.Error()
	}
	return err
}

// SelectBest returns the first valid source from an ordered candidate list.
func SelectBest(ctx context.Context, sources []DataSource) (DataSource, error) {
	for i := range sources {
		if err := Validate(ctx, &sources[i]); err == nil {
			return sources[i], nil
		}
	}
	return DataSource{}, ErrNoSource
}

// OpenSource opens a concrete reader for s.
func OpenSource(s DataSource) (Source, error) {
	switch s.Type {
	case SourceTypeJSON:
		return NewFileSource(s.Path), nil
	case SourceTypeSQLite:
		return NewSQLiteSource(s.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, s.Type)
	}
}

// Open resolves an explicit path (and optional type) or, when path is
// empty, discovers the freshest valid source in dir.
func Open(ctx context.Context, typ, path, dir string) (Source, DataSource, error) {
	if path != "" {
		st := SourceType(strings.ToLower(typ))
		if st == "" {
			var err error
			if st, err = DetectType(path); err != nil {
				return nil, DataSource{}, err
			}
		}
		ds := DataSource{Type: st, Path: path, Priority: priorityOf(st)}
		if info, err := os.Stat(path); err == nil {
			ds.ModTime = info.ModTime()
			ds.Size = info.Size()
		} else {
			return nil, ds, fmt.Errorf("open source: %w", err)
		}
		src, err := OpenSource(ds)
		return src, ds, err
	}

	candidates, err := Discover(dir)
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectBest(ctx, candidates)
	if err != nil {
		return nil, DataSource{}, err
	}
	src, err := OpenSource(best)
	return src, best, err
}

// Static serves a fixed element set. It backs tests and library callers
// that already hold their data in memory.
type Static struct {
	Elems model.Elements
	Vers  []model.Version
	Err   error
}

// NewStatic returns a Static source. A nil versions list is derived from
// the elements in first-seen order.
func NewStatic(elems model.Elements, versions []model.Version) *Static {
	if versions == nil {
		versions = elems.Versions()
	}
	return &Static{Elems: elems, Vers: versions}
}

func (s *Static) Elements(ctx context.Context) (model.Elements, error) {
	if err := ctx.Err(); err != nil {
		return model.Elements{}, err
	}
	return s.Elems, s.Err
}

func (s *Static) Versions(ctx context.Context) ([]model.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Vers, s.Err
}

func (s *Static) Close() error { return nil }
