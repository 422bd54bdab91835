package datasource

import (
	"context"
	"fmt"
	"os"
)

// LoadFile parses the JSON document at path.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	doc, err := ParseDocument(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ImportFile converts the JSON document at jsonPath into a SQLite store at
// dbPath, then reads the store back and diffs it against the document so
// a lossy import is reported rather than silently accepted.
func ImportFile(ctx context.Context, jsonPath, dbPath string) (SourceDiff, error) {
	doc, err := LoadFile(jsonPath)
	if err != nil {
		return SourceDiff{}, err
	}
	if err := doc.Elements.Validate(); err != nil {
		return SourceDiff{}, fmt.Errorf("%s: %w", jsonPath, err)
	}
	if err := ImportSQLite(ctx, dbPath, doc); err != nil {
		return SourceDiff{}, err
	}

	store, err := NewSQLiteSource(dbPath)
	if err != nil {
		return SourceDiff{}, err
	}
	defer store.Close()
	return CompareSources(ctx, NewStatic(doc.Elements, doc.Versions), store, jsonPath, dbPath)
}
